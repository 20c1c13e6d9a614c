package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// Violation is a single assembly-time validation failure.
type Violation struct {
	Entity string // e.g. "placement/api"
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Entity, v.Reason)
}

// TopologyError reports every violation found during one validation pass.
// Operators fix all issues in one iteration instead of replaying the
// assembler one error at a time.
type TopologyError struct {
	Violations []Violation
}

func (e *TopologyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d violation(s)", CodeTopologyInvalid, len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.String())
	}
	return b.String()
}

// AsTopology unwraps err into a TopologyError if it is one.
func AsTopology(err error) (*TopologyError, bool) {
	var t *TopologyError
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}
