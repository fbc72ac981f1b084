// Package deploy owns the redeploy pipeline for a validator test cluster.
//
// Ownership boundary:
// - request intake and validation
//
// - build-cache bootstrap
//
// - halt of earlier deployments
//
// - per-node state directory reset
//
// - phase sequencing
//
// Pipeline order (fixed):
// - caches -> halt -> topology -> build -> state reset -> up
//
// - build is skipped for UpOnly, up is skipped for BuildOnly; state reset always runs.
//
// Nothing is retried. Cache bootstrap and halt are idempotent, so the next
// successful run repairs whatever an aborted run left behind.
package deploy
