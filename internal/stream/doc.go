// Package stream maintains the persistent websocket connection that carries
// incremental assistant output.
//
// # Connection Lifecycle
//
// A Channel moves through Idle → Connecting → Open → Closed, and back to
// Connecting on automatic reconnect. It connects only while the session is
// authenticated, suppresses duplicate connect attempts, and schedules exactly
// one reconnect after an abnormal closure, provided the session is still
// authenticated when the backoff timer fires.
//
// # Close Codes
//
//   - 1000: normal closure, no reconnect
//   - 4001: authentication failure, no reconnect, auth error surfaced
//   - anything else: abnormal, reconnect after a fixed backoff
//
// # Events
//
// Inbound frames are JSON objects {type, message_id, data} with type one of
// delta, done, or error. Frames that fail to parse are logged and dropped;
// they never terminate the connection. Events are delivered to the handler
// in arrival order from a single reader goroutine.
package stream
