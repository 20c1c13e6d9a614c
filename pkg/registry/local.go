package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketReferences = []byte("references")

// Local is a file-backed registry index for development and tests. It does
// not hold image content, only which references have been recorded as
// pushed, which is all the publisher's skip logic needs.
type Local struct {
	db *bolt.DB
}

type referenceRecord struct {
	Reference  string    `json:"reference"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewLocal creates a local registry index under dataDir
func NewLocal(dataDir string) (*Local, error) {
	dbPath := filepath.Join(dataDir, "registry.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry index: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReferences)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Local{db: db}, nil
}

// Close closes the index
func (l *Local) Close() error {
	return l.db.Close()
}

// Exists reports whether the reference has been recorded
func (l *Local) Exists(ctx context.Context, reference string) (bool, error) {
	var found bool
	err := l.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketReferences).Get([]byte(reference)) != nil
		return nil
	})
	return found, err
}

// Record persists the reference as pushed
func (l *Local) Record(ctx context.Context, reference string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(referenceRecord{
			Reference:  reference,
			RecordedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketReferences).Put([]byte(reference), data)
	})
}

// List returns all recorded references
func (l *Local) List() ([]string, error) {
	var refs []string
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReferences).ForEach(func(k, v []byte) error {
			refs = append(refs, string(k))
			return nil
		})
	})
	return refs, err
}
