package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a failure so callers can react without string matching.
// Codes are string-based for debuggability and natural JSON serialization.
type Code string

const (
	// CodeInputNotFound indicates a required input path or manifest is missing.
	CodeInputNotFound Code = "INPUT_NOT_FOUND"

	// CodeAddressSpaceExhausted indicates the requested network carve does not
	// fit inside the parent address block.
	CodeAddressSpaceExhausted Code = "ADDRESS_SPACE_EXHAUSTED"

	// CodeInvalidEdge indicates a declared access edge failed validation.
	CodeInvalidEdge Code = "INVALID_EDGE"

	// CodeBuildFailed indicates an external image build failed.
	CodeBuildFailed Code = "BUILD_FAILED"

	// CodePushFailed indicates an external image push failed.
	CodePushFailed Code = "PUSH_FAILED"

	// CodeUnsupportedContentType indicates a bundle file maps to no known
	// content type and the fallback policy is disabled.
	CodeUnsupportedContentType Code = "UNSUPPORTED_CONTENT_TYPE"

	// CodeArtifactNotReady indicates a placement referenced an artifact whose
	// publish has not completed. The assembler ordering makes this a
	// programming error, not a runtime race.
	CodeArtifactNotReady Code = "ARTIFACT_NOT_READY"

	// CodeNoDefaultRoute indicates a route table was built without a
	// catch-all route.
	CodeNoDefaultRoute Code = "NO_DEFAULT_ROUTE"

	// CodeTopologyInvalid indicates assembly-time validation failed. The
	// error always carries the complete violation set.
	CodeTopologyInvalid Code = "TOPOLOGY_INVALID"
)

// Error is a classified failure tied to a named entity.
type Error struct {
	Code   Code
	Entity string // the artifact, segment, group, placement or route at fault
	Msg    string
	Err    error // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error for the named entity.
func New(code Code, entity, format string, args ...interface{}) *Error {
	return &Error{Code: code, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and entity to an underlying cause.
func Wrap(code Code, entity string, err error) *Error {
	return &Error{Code: code, Entity: entity, Err: err}
}

// GetCode extracts the classification from err, or empty if unclassified.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var t *TopologyError
	if errors.As(err, &t) {
		return CodeTopologyInvalid
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsInputNotFound reports whether err is an INPUT_NOT_FOUND error.
func IsInputNotFound(err error) bool { return IsCode(err, CodeInputNotFound) }

// IsAddressSpaceExhausted reports whether err is an ADDRESS_SPACE_EXHAUSTED error.
func IsAddressSpaceExhausted(err error) bool { return IsCode(err, CodeAddressSpaceExhausted) }

// IsInvalidEdge reports whether err is an INVALID_EDGE error.
func IsInvalidEdge(err error) bool { return IsCode(err, CodeInvalidEdge) }

// IsBuildFailed reports whether err is a BUILD_FAILED error.
func IsBuildFailed(err error) bool { return IsCode(err, CodeBuildFailed) }

// IsPushFailed reports whether err is a PUSH_FAILED error.
func IsPushFailed(err error) bool { return IsCode(err, CodePushFailed) }

// IsUnsupportedContentType reports whether err is an UNSUPPORTED_CONTENT_TYPE error.
func IsUnsupportedContentType(err error) bool { return IsCode(err, CodeUnsupportedContentType) }

// IsArtifactNotReady reports whether err is an ARTIFACT_NOT_READY error.
func IsArtifactNotReady(err error) bool { return IsCode(err, CodeArtifactNotReady) }

// IsNoDefaultRoute reports whether err is a NO_DEFAULT_ROUTE error.
func IsNoDefaultRoute(err error) bool { return IsCode(err, CodeNoDefaultRoute) }

// IsTopologyInvalid reports whether err is a TOPOLOGY_INVALID error.
func IsTopologyInvalid(err error) bool { return IsCode(err, CodeTopologyInvalid) }
