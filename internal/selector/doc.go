// Package selector chooses one live endpoint for each job. When the
// registry snapshot shows the whole pool dead it performs one immediate
// synchronous re-probe before giving up.
//
// Picking among live endpoints goes through the Picker interface:
//
//   - Random: uniform random selection (the default)
//   - Round Robin: sequential cycling across endpoints
package selector
