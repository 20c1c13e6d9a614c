// Package router implements health-gated traffic routing: an immutable
// route table with longest-prefix resolution, the per-target lifecycle
// state machine, the health-poll watcher that drives it, and a local edge
// server that previews the compiled routing behavior.
//
// # Route resolution
//
// A Table is built once from the deployment's declared routes and never
// mutated. Resolution is total by construction:
//
//   - longest literal prefix wins ("/api/v2/*" beats "/api/*")
//   - equal-length prefixes are ordered by declared priority, lower wins
//   - the single default route (empty prefix) matches everything last
//
// A route set without a default route is rejected when the table is built,
// so a request can never fail to resolve at serve time. The default route
// must target the static bundle; placement routes are the explicitly
// declared exceptions in front of it.
//
// # Cache policies
//
// Every route carries a CachePolicy bounding how stale the edge may serve
// its responses. The default route gets the static policy (hours to a
// year: bundle objects are content-addressed, staleness is structurally
// impossible across publishes). Placement routes get the dynamic policy
// (zero default, one second ceiling) so backend responses absorb bursts
// without being served meaningfully stale.
//
// # Target lifecycle
//
// Each route target moves through a fixed state machine, tracked by
// Tracker and enforced on every transition:
//
//	defined ──> health_unknown ──> healthy
//	                  ^               │
//	                  └───────────────┘
//	   (any) ──> draining ──> removed
//
// A target only receives traffic while healthy. New targets must pass a
// probe to get there; a healthy target that fails its retry threshold
// falls back to health_unknown and stops receiving traffic until it
// passes again. Deregistration drains the target first so in-flight
// requests finish, then removes it after the grace period.
//
// # Health polling
//
// The Watcher runs one goroutine with its own ticker per target, so a
// slow or hanging probe against one target never delays probes against
// another. Probe verdicts update a health.Status (consecutive success and
// failure counting) and state transitions fire only on threshold edges,
// not on every probe.
//
// # Edge serving
//
// Edge is the http.Handler that serves a compiled table locally: bundle
// routes stream objects from the object store (unknown keys fall back to
// the index object for client-side routing), placement routes reverse-
// proxy to the registered upstream with forwarding headers, and every
// response carries its route's Cache-Control. Placement routes answer 503
// while their target is not healthy. The production edge is realized by
// the external apply engine from the same compiled routes; this server
// exists so a deployment can be exercised before anything is applied.
package router
