// Package placement turns placement specs into validated placement records.
//
// A placement binds a published artifact to an access group with a desired
// replica count, a compute shape, an optional health check, and a derived
// execution identity. Definition is pure validation and derivation; nothing
// is scheduled here.
//
// Identity derivation splits credentials by lifecycle phase: the pull role
// exists only while an instance is being provisioned, the runtime role is
// all a running instance ever holds.
package placement
