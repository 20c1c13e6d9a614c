// Package manifest reads and validates the deployment declaration.
//
// A stratus.yaml file is the compiler's single input: the project name and
// base domain, the address space to carve, the access groups and their
// visibility classes, the declared communication edges, the two artifacts
// (image build context and static bundle directory), the placements with
// their environment and health probes, and the route table. Parsing is
// strict: unknown fields are an error so a typoed key never silently
// disappears.
//
// Environment values use a small reference syntax: a plain string is a
// literal, and "ref:entity.output" defers resolution to assembly time,
// when the named entity's output is known. Validation here is per-field
// and syntactic; cross-entity consistency is the assembler's job, which
// reports all violations together.
package manifest
