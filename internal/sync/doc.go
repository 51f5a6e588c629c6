// Package sync moves events between the local event log and the remote
// event store.
//
// Overview
//
// Client speaks the remote's HTTP contract:
//
//	POST {remote}/api/sync/push   {"events":[...]}  -> {"ok":true,"saved":N}
//	GET  {remote}/api/sync/pull                     -> {"ok":true,"events":[...]}
//	GET  {remote}/health
//
// Flusher drains the local queue through a Pusher:
//
//	eventlog.Queue ──Pending──> Flusher ──Push──> remote
//	      ^                        │
//	      └────Remove(pushed ids)──┘  (only on success)
//
// Flush policy
//
// A flush pushes the whole queue as one batch. On success exactly the
// pushed events are removed, so events enqueued while the request was in
// flight are kept for the next flush. On failure the queue is left intact
// and the error is returned for the caller to log. There is no retry
// counter and no backoff: the next trigger (process start, or the daemon
// seeing the remote come back online) simply tries again.
//
// Cancellation
//
// The client has no timeout unless Config.Timeout is set. Every request
// takes a context.
package sync
