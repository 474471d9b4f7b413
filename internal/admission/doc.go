// Package admission gates job submission. It enforces a single in-flight
// job per requester and holds the reserve/compensate contract against the
// external ledger: a debit happens before dispatch, and an equal credit
// happens if and only if dispatch fails after the debit succeeded.
package admission
