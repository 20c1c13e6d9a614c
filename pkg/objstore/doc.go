// Package objstore abstracts the object storage a bundle is synchronized
// into. S3 targets a real bucket with content hashes carried as object
// metadata; Local is a file-backed store for development and tests.
package objstore
