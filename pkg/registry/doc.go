// Package registry abstracts image reference existence checks. Remote
// speaks the OCI distribution API; Local keeps a file-backed index for
// development and tests.
package registry
