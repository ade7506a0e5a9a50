// ABOUTME: Message model with an explicit lifecycle kind and namespaced IDs.
// ABOUTME: Kind drives reconciliation; ID prefixes exist only for debugging.

package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the two conversation parties.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status mirrors the delivery states the renderer cares about.
type Status string

const (
	StatusSending   Status = "sending"
	StatusQueued    Status = "queued"
	StatusStreaming Status = "streaming"
	StatusDelivered Status = "delivered"
	StatusError     Status = "error"
)

// Kind tags where a message is in its lifecycle. Reconciliation branches on
// Kind, never on the shape of the ID.
type Kind int

const (
	// KindConfirmed messages carry a server-issued identity.
	KindConfirmed Kind = iota
	// KindOptimistic messages were shown before the server confirmed them.
	KindOptimistic
	// KindPlaceholder marks the temporary assistant entry shown while a
	// reply is pending. The first delta replaces it.
	KindPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindOptimistic:
		return "optimistic"
	case KindPlaceholder:
		return "placeholder"
	default:
		return "confirmed"
	}
}

// Message is a single conversation entry as held by the Store.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"-"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	AudioURL  string    `json:"audio_url,omitempty"`
	Status    Status    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ID namespaces. These make local entries recognizable in logs and dumps;
// they carry no behavioral meaning.
const (
	optimisticPrefix       = "temp-"
	voiceOptimisticPrefix  = "temp-voice-"
	placeholderPrefix      = "streaming-"
	voicePlaceholderPrefix = "streaming-voice-"
	errorPrefix            = "error-"
)

func newOptimisticID() string       { return optimisticPrefix + uuid.NewString() }
func newVoiceOptimisticID() string  { return voiceOptimisticPrefix + uuid.NewString() }
func newPlaceholderID() string      { return placeholderPrefix + uuid.NewString() }
func newVoicePlaceholderID() string { return voicePlaceholderPrefix + uuid.NewString() }
func newErrorID() string            { return errorPrefix + uuid.NewString() }
