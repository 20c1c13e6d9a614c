// Package assembler composes the compiled deployment from its parts.
//
// Assemble is the compiler's top pass: it carves the network, derives the
// access policy, validates the declared topology, resolves deferred
// environment references against collaborator outputs, compiles the route
// table, and orders every resource into a provisioning plan for the
// external apply engine.
//
// # Validation
//
// Validation never stops at the first problem. One pass collects every
// violation into a single TopologyInvalid error:
//
//   - a placement whose artifact is unknown or unpublished
//   - a route targeting an unknown placement or bundle
//   - a placement joining a group absent from the derived policy
//   - an environment reference naming an output nobody supplied
//   - a declared edge from a public group into a data group
//   - a route set without a default route
//   - a dependency cycle between placements
//
// Input errors that precede topology validation keep their own codes:
// a parent block too small for the requested zones surfaces as
// AddressSpaceExhausted, a bad port as InvalidEdge.
//
// # The plan
//
// Every must-happen-before relation is an explicit graph edge, never an
// implicit construction-order side effect: the network precedes its
// segments, artifacts and policy groups precede placements, placements
// precede the routes targeting them, and all routes precede the endpoint.
// The plan is the topological order of this graph with lexical tie-breaks,
// so identical inputs always produce an identical plan. That determinism is
// the substitute for persisted state: the apply engine can regenerate and
// diff the graph instead of trusting a stored copy.
package assembler
