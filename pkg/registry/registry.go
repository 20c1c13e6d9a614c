package registry

import "context"

// Registry answers whether an image reference is already published, which
// is what makes image publishing idempotent. Record notes a successful
// push; remote registries hold the tag themselves so their Record is a
// no-op, while local development registries persist it.
type Registry interface {
	Exists(ctx context.Context, reference string) (bool, error)
	Record(ctx context.Context, reference string) error
}
