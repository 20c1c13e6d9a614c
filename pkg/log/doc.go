// Package log provides structured logging for Stratus built on zerolog.
//
// Call Init once at startup, then derive child loggers with WithComponent
// and the domain helpers (WithDeployment, WithArtifact, WithPlacement) so
// every line carries the fields needed to trace one compilation.
package log
