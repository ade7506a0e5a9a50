// ABOUTME: Bounded set of seen identifiers for idempotent terminal-event handling
// ABOUTME: Evicts oldest entries at capacity; size is small, a client sees few IDs

package dedupe

import "container/list"

// DefaultCapacity comfortably covers every terminal event a single chat
// session can produce.
const DefaultCapacity = 256

// Set remembers identifiers it has seen, up to a fixed capacity. At capacity
// the oldest identifier is evicted. The zero value is not usable; use New.
//
// Set is not safe for concurrent use. The coordinator confines it to its
// event loop, the same discipline as the message store.
type Set struct {
	seen     map[string]*list.Element
	order    *list.List // insertion order, oldest at front
	capacity int
}

// New creates a Set with the given capacity. Zero or negative capacity uses
// the default.
func New(capacity int) *Set {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Set{
		seen:     make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

// CheckAndMark reports whether id was already seen, marking it if not.
// The single call site pattern makes duplicate handling a one-liner:
//
//	if s.CheckAndMark(id) { return } // duplicate, already handled
func (s *Set) CheckAndMark(id string) bool {
	if _, ok := s.seen[id]; ok {
		return true
	}

	if len(s.seen) >= s.capacity {
		oldest := s.order.Front()
		if oldest != nil {
			key, _ := oldest.Value.(string)
			s.order.Remove(oldest)
			delete(s.seen, key)
		}
	}

	s.seen[id] = s.order.PushBack(id)
	return false
}

// Len returns the number of tracked identifiers.
func (s *Set) Len() int {
	return len(s.seen)
}

// Reset forgets all identifiers. Used when the conversation cache is
// discarded, e.g. on a user switch.
func (s *Set) Reset() {
	s.seen = make(map[string]*list.Element)
	s.order.Init()
}
