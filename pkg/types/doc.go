/*
Package types defines the core data structures used throughout Stratus.

This package contains all fundamental types that represent the Stratus domain
model, including fingerprints, network topologies, access policies, artifacts,
placements, routes, and compiled deployments. These types are used by all
other packages for derivation, publishing, and plan assembly.

# Architecture

The types package is the foundation of the Stratus data model. It defines:

  - Content identity (fingerprints over tracked input trees)
  - Network topology (visibility classes, segments, egress paths)
  - Access policies (edges, derived ingress/egress rule sets)
  - Artifacts (container images and static bundles)
  - Compute placements (environment, resources, execution identity)
  - Traffic routing (prefix routes, cache policies, target lifecycle)
  - Compiled deployments (resources plus ordered provisioning plan)

All types are designed to be:
  - Serializable (JSON for plans, stores, and logs)
  - Deterministic (identical inputs produce identical values)
  - Self-documenting (clear field names and comments)
  - Validated (constants for enums, validation helpers)

# Core Types

Content Identity:
  - Fingerprint: Content digest plus declared version
  - ShortFingerprintLen: Truncation used in artifact references

Network Topology:
  - NetworkTopology: Fully carved address plan for one deployment
  - NetworkSegment: One class/zone address block
  - VisibilityClass: Public, private, or data exposure tier
  - EgressPath: Outbound gateway, shared or per-zone

Access Policy:
  - AccessEdge: Declared reachability between two groups
  - AccessGroup: Named boundary with derived rules
  - AccessRule: One normalized ingress or egress entry
  - AccessPolicy: All groups for a deployment, in lexical order

Artifacts & Placements:
  - Artifact: Image or bundle with fingerprint and publish state
  - Placement: Artifact bound to a group with env, scale, identity
  - EnvValue: Literal string or deferred output reference
  - ExecutionIdentity: Separate pull and runtime roles

Routing:
  - Route: Path prefix mapped to a placement or bundle
  - CachePolicy: Edge cache TTL bounds per route
  - TargetState: Health-gated lifecycle of a route target

Output:
  - Deployment: Every derived resource plus the ordered plan
  - PlanStep: One resource with its provisioning dependencies

# State Machine

Route targets follow a state machine:

	Defined → HealthUnknown → Healthy → Draining → Removed
	                ↑             ↓
	                └─────────────┘

Valid state transitions:
  - Defined → HealthUnknown (probing starts)
  - HealthUnknown → Healthy (probe passes)
  - Healthy → HealthUnknown (probe starts failing)
  - Healthy → Draining (target retired)
  - HealthUnknown → Draining (target retired before recovery)
  - Draining → Removed (in-flight requests complete)

Only Healthy targets receive traffic.

# Design Patterns

Enumeration Pattern:

	All enums use typed string constants for safety and clarity:
	  type VisibilityClass string
	  const (
	      VisibilityPublic  VisibilityClass = "public"
	      VisibilityPrivate VisibilityClass = "private"
	  )

Deferred Values:

	Environment entries that depend on not-yet-provisioned resources use
	OutputRef so the compiler never needs a live connection string. The
	execution engine resolves them at provisioning time.

Optional Fields:

	Optional configurations use pointers:
	  - *HealthCheck: nil = no health gating
	  - *CachePolicy: nil = kind-based default
	  - *ExecutionIdentity: nil = derived at definition time

# Determinism

Everything in this package that feeds a plan must be reproducible: slices
are kept in canonical order (zone order for segments, lexical order for
groups and rules), and no type embeds wall-clock or random identity in a
value that other resources key on. CreatedAt fields are informational only.

# Integration Points

This package integrates with:

  - pkg/fingerprint: Computes Fingerprint values from input trees
  - pkg/network: Carves NetworkTopology from an address block
  - pkg/policy: Derives AccessPolicy from edges
  - pkg/artifact: Publishes Artifacts and assigns references
  - pkg/placement: Validates and defines Placements
  - pkg/router: Builds route tables and drives TargetState
  - pkg/assembler: Produces the final Deployment and plan
*/
package types
