/*
Package artifact builds and publishes the content-addressed deployable
units everything downstream consumes.

Two artifact kinds exist. An image is a container image built from a build
context and pushed to a registry under a reference derived from the
context's declared version and fingerprint:

	registry.example.com/backend:1.4.0-9f86d081884c

A bundle is a static file tree synchronized object by object into an
object store, each object keyed by its relative path and tagged with its
content hash; the bundle's reference is the store's base endpoint.

# Idempotency

Publishing is driven entirely by content addressing:

  - An image whose derived reference already exists in the registry is
    skipped without building. Unchanged inputs always derive the same
    reference, so re-running a deploy is free.
  - A changed context or a version bump derives a new reference, so the
    old image is never overwritten. Artifacts are immutable once
    published.
  - Bundle objects whose stored hash matches the local file are skipped;
    only changed files upload.

# Concurrency

Publishes of the same reference are serialized through a per-reference
mutex so two racing deploys can never interleave a build and push of one
tag. Distinct references, including the image and bundle of one
deployment, run freely in parallel. Bundle objects upload through a
bounded worker pool; the first failure cancels the remaining uploads and
the artifact is not returned, so consumers only ever observe fully
published artifacts.

# Content types

Bundle uploads take their content type from an extension allow-list. An
extension outside the list is a policy decision, not a silent default:
the standard policy sniffs the file and falls back to a generic binary
type, logging and counting every fallback, while WithStrictContentTypes
turns it into an UnsupportedContentType failure.

# Collaborators

The publisher operates on three small interfaces: builder.Builder turns a
context directory into a pushed image, registry.Registry answers whether
a reference already exists, and objstore.Store holds bundle objects. Real
deployments wire the docker CLI, an OCI registry, and S3; tests wire
in-memory and file-backed fakes.
*/
package artifact
