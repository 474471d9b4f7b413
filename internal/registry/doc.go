// Package registry holds the set of known backend endpoints and their
// last-known liveness. The address set is fixed at construction; liveness
// is mutated by the health monitor and read by concurrent selectors.
package registry
