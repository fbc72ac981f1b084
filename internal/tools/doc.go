// Package tools provides reusable runtime helpers shared by deployment modules.
//
// Ownership boundary:
// - command execution helpers (privilege elevation, capture, quiet, streaming)
//
// - shell-safe command rendering for logs and diagnostics
package tools
