// Package metrics provides real-time metrics collection for the dispatch
// gateway.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - completed jobs and generation durations per backend, with
//     percentile calculations (P50, P95, P99)
//   - failure counts keyed by failure kind
//   - admission rejections
//   - backend liveness transitions
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the job path. Events are sent via a buffered channel with
// non-blocking semantics; a full buffer drops the event rather than
// delaying dispatch. Shutdown drains pending events before exiting.
package metrics
