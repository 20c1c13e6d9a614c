// Package fingerprint computes deterministic content identifiers for input
// trees.
//
// A fingerprint covers every regular file's relative path and bytes plus the
// tree's declared version, so artifacts are rebuilt exactly when their inputs
// or declared version change and skipped otherwise. Traversal order is
// normalized, which makes fingerprints reproducible across machines and
// filesystems.
package fingerprint
