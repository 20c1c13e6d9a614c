// Package graph provides the dependency graph the assembler orders
// provisioning plans with. Sorting is deterministic (lexical tie-break)
// and cycles are a hard error, never silently broken.
package graph
