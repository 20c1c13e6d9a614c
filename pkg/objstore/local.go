package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
)

var (
	bucketMeta    = []byte("meta")
	bucketContent = []byte("content")
)

// Local is a file-backed object store for development and tests. Metadata
// and content live in separate buckets so Stat never loads object bodies.
type Local struct {
	db       *bolt.DB
	endpoint string
}

// NewLocal creates a local object store under dataDir
func NewLocal(dataDir string) (*Local, error) {
	dbPath := filepath.Join(dataDir, "objects.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open object store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketMeta, bucketContent} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Local{db: db, endpoint: "local://objects"}, nil
}

// WithEndpoint overrides the published base URL
func (l *Local) WithEndpoint(endpoint string) *Local {
	l.endpoint = endpoint
	return l
}

// Close closes the store
func (l *Local) Close() error {
	return l.db.Close()
}

// Endpoint returns the base URL consumers fetch objects from
func (l *Local) Endpoint() string {
	return l.endpoint
}

// Stat returns the stored object's metadata
func (l *Local) Stat(ctx context.Context, key string) (*Object, bool, error) {
	var obj *Object
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get([]byte(key))
		if data == nil {
			return nil
		}
		obj = &Object{}
		return json.Unmarshal(data, obj)
	})
	if err != nil {
		return nil, false, err
	}
	return obj, obj != nil, nil
}

// Put stores one object
func (l *Local) Put(ctx context.Context, obj Object, body io.Reader) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body for %s: %w", obj.Key, err)
	}
	obj.Size = int64(len(content))

	return l.db.Update(func(tx *bolt.Tx) error {
		meta, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketMeta).Put([]byte(obj.Key), meta); err != nil {
			return err
		}
		return tx.Bucket(bucketContent).Put([]byte(obj.Key), content)
	})
}

// Get returns the object's metadata and content
func (l *Local) Get(ctx context.Context, key string) (*Object, io.ReadCloser, error) {
	var (
		obj     *Object
		content []byte
	)
	err := l.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta).Get([]byte(key))
		if meta == nil {
			return nil
		}
		obj = &Object{}
		if err := json.Unmarshal(meta, obj); err != nil {
			return err
		}
		// Copy out: bolt memory is only valid inside the transaction.
		data := tx.Bucket(bucketContent).Get([]byte(key))
		content = make([]byte, len(data))
		copy(content, data)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if obj == nil {
		return nil, nil, errdefs.New(errdefs.CodeInputNotFound, key, "object not in store")
	}
	return obj, io.NopCloser(bytes.NewReader(content)), nil
}

// Keys returns all stored object keys in byte order
func (l *Local) Keys() ([]string, error) {
	var keys []string
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}
