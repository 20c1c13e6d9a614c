package errdefs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "code and entity",
			err:      New(CodeInputNotFound, "web/build", "path does not exist"),
			expected: "INPUT_NOT_FOUND: web/build: path does not exist",
		},
		{
			name:     "code only",
			err:      &Error{Code: CodeNoDefaultRoute},
			expected: "NO_DEFAULT_ROUTE",
		},
		{
			name:     "wrapped cause",
			err:      Wrap(CodePushFailed, "registry.local/app:1.0.0-abc123", errors.New("connection refused")),
			expected: "PUSH_FAILED: registry.local/app:1.0.0-abc123: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestCodeClassification(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"direct match", New(CodeInvalidEdge, "app->db", "port 0"), CodeInvalidEdge, true},
		{"wrapped match", fmt.Errorf("derive: %w", New(CodeInvalidEdge, "app->db", "port 0")), CodeInvalidEdge, true},
		{"different code", New(CodeBuildFailed, "api", "exit 1"), CodePushFailed, false},
		{"unclassified", cause, CodeBuildFailed, false},
		{"nil cause preserved", Wrap(CodeBuildFailed, "api", cause), CodeBuildFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCode(tt.err, tt.code))
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(CodePushFailed, "app:1.0.0", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsPushFailed(fmt.Errorf("publish: %w", err)))
}

func TestTopologyError(t *testing.T) {
	err := &TopologyError{Violations: []Violation{
		{Entity: "placement/api", Reason: "artifact not published"},
		{Entity: "route//admin", Reason: "unknown target"},
	}}

	assert.True(t, IsTopologyInvalid(err))
	assert.Equal(t, CodeTopologyInvalid, GetCode(err))
	assert.Contains(t, err.Error(), "2 violation(s)")
	assert.Contains(t, err.Error(), "placement/api: artifact not published")
	assert.Contains(t, err.Error(), "route//admin: unknown target")

	got, ok := AsTopology(fmt.Errorf("assemble: %w", err))
	assert.True(t, ok)
	assert.Len(t, got.Violations, 2)
}
