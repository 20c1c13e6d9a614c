package objstore

import (
	"context"
	"io"
)

// HashMetadataKey is the metadata entry carrying each object's content
// digest. Re-publishing compares this against the local file's digest to
// skip unchanged objects.
const HashMetadataKey = "stratus-hash"

// Object is the metadata stored alongside each uploaded bundle file.
type Object struct {
	Key         string
	ContentType string
	Hash        string
	Size        int64
}

// Store is the object storage a bundle is synchronized into.
type Store interface {
	// Endpoint is the base URL consumers fetch objects from. It becomes the
	// bundle artifact's published reference.
	Endpoint() string

	// Stat returns the stored object's metadata, or ok=false when the key
	// does not exist.
	Stat(ctx context.Context, key string) (obj *Object, ok bool, err error)

	// Put uploads one object under obj.Key.
	Put(ctx context.Context, obj Object, body io.Reader) error

	// Get returns the object's metadata and content. Missing keys fail with
	// InputNotFound.
	Get(ctx context.Context, key string) (*Object, io.ReadCloser, error)
}
