// Package chat implements the conversation state engine: an ordered,
// deduplicated message log and the coordinator that reconciles three
// asynchronous sources of truth into it.
//
// # Sources of Truth
//
// The coordinator merges:
//
//   - optimistic local entries created the moment the user acts
//   - server-confirmed messages from the request/response API
//   - incremental assistant output from the stream channel
//
// # Scheduling
//
// All store mutations run on a single event-loop goroutine owned by the
// coordinator; entry points post work onto the loop and asynchronous
// completions (HTTP responses, stream events, timer fires) post back. The
// store itself is therefore unsynchronized: ordering discipline between
// callbacks replaces locks.
//
// # Message Lifecycle
//
// A message carries an explicit lifecycle kind rather than encoding it in
// its identifier:
//
//   - KindOptimistic: shown before server confirmation, replaced on success
//     or marked error on failure
//   - KindPlaceholder: a temporary "reply in progress" assistant entry that
//     the first delta converts into a confirmed streaming message
//   - KindConfirmed: server-issued
//
// # Turn Resolution
//
// Transport failure, stream error, and response timeout can all fire for
// the same turn. A single turn-resolved flag decides which of them gets to
// synthesize the one visible error message; the others become no-ops.
package chat
