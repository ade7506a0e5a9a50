// ABOUTME: Typed stream events and their wire format
// ABOUTME: Frames are JSON objects keyed by a message identifier

package stream

// EventType identifies the kind of stream frame.
type EventType string

// Stream event types
const (
	// EventDelta carries an incremental chunk of assistant text.
	EventDelta EventType = "delta"
	// EventDone marks the assistant turn complete.
	EventDone EventType = "done"
	// EventError reports a server-side failure for the turn.
	EventError EventType = "error"
)

// Event is one inbound or outbound stream frame.
type Event struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"message_id,omitempty"`
	Data      string    `json:"data,omitempty"`
}

// known reports whether the event type is one the conversation engine
// consumes. The backend also emits informational frames (connection
// confirmations, pongs) that the channel drops.
func (e Event) known() bool {
	switch e.Type {
	case EventDelta, EventDone, EventError:
		return true
	}
	return false
}
