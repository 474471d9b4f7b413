// Package health implements periodic background probing of backend
// endpoints. It keeps registry liveness approximately fresh so that
// dispatch does not pay probe latency on every job.
package health
