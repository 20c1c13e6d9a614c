package builder

import "context"

// Builder produces a container image from a build context and pushes it
// under the given reference. Implementations must be safe for concurrent
// use; the publisher serializes calls per reference, not globally.
type Builder interface {
	BuildAndPush(ctx context.Context, contextDir, reference string) error
}

// Func adapts a function to the Builder interface. Used in tests and for
// environments where the build is delegated to an external pipeline.
type Func func(ctx context.Context, contextDir, reference string) error

// BuildAndPush calls f
func (f Func) BuildAndPush(ctx context.Context, contextDir, reference string) error {
	return f(ctx, contextDir, reference)
}
