// Package ledger provides an in-memory implementation of the admission
// ledger port. Persistence is out of scope for the gateway; production
// deployments supply their own store behind the same interface.
package ledger
