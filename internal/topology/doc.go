// Package topology owns the cluster topology document.
//
// Ownership boundary:
// - typed coordinator/peer block generation from a node count
//
// - the single YAML renderer consumed by docker-compose
//
// Node 0 is always the coordinator. Peers 1..n-1 follow in ascending order
// and declare, but do not enforce, a wait on the coordinator control port.
package topology
