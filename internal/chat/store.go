// ABOUTME: Ordered in-memory conversation log, newest entry first.
// ABOUTME: Not concurrency-safe; confined to the coordinator's event loop.

package chat

// Predicate selects messages for Replace, UpdateWhere, and RemoveWhere.
type Predicate func(Message) bool

// Patch mutates a message in place during UpdateWhere.
type Patch func(*Message)

// Store holds the conversation in reverse-chronological order (index 0 is
// the newest entry). It performs no locking: the coordinator's event loop
// is the only goroutine that touches it.
type Store struct {
	msgs []Message
}

func NewStore() *Store {
	return &Store{}
}

// Prepend inserts m as the newest entry.
func (s *Store) Prepend(m Message) {
	s.msgs = append([]Message{m}, s.msgs...)
}

// Replace swaps the first message matching pred for m, keeping its
// position. No match is a no-op.
func (s *Store) Replace(pred Predicate, m Message) bool {
	for i := range s.msgs {
		if pred(s.msgs[i]) {
			s.msgs[i] = m
			return true
		}
	}
	return false
}

// UpdateWhere applies patch to every message matching pred and reports how
// many matched.
func (s *Store) UpdateWhere(pred Predicate, patch Patch) int {
	n := 0
	for i := range s.msgs {
		if pred(s.msgs[i]) {
			patch(&s.msgs[i])
			n++
		}
	}
	return n
}

// RemoveWhere drops every message matching pred.
func (s *Store) RemoveWhere(pred Predicate) {
	kept := s.msgs[:0]
	for _, m := range s.msgs {
		if !pred(m) {
			kept = append(kept, m)
		}
	}
	s.msgs = kept
}

// Clear empties the log.
func (s *Store) Clear() {
	s.msgs = nil
}

func (s *Store) Len() int {
	return len(s.msgs)
}

// Find returns the first message matching pred.
func (s *Store) Find(pred Predicate) (Message, bool) {
	for _, m := range s.msgs {
		if pred(m) {
			return m, true
		}
	}
	return Message{}, false
}

// Snapshot returns the conversation oldest-first, as a renderer wants it.
// The slice is a copy; callers may hold it across loop iterations.
func (s *Store) Snapshot() []Message {
	out := make([]Message, len(s.msgs))
	for i, m := range s.msgs {
		out[len(s.msgs)-1-i] = m
	}
	return out
}

func byID(id string) Predicate {
	return func(m Message) bool { return m.ID == id }
}

func byKind(k Kind) Predicate {
	return func(m Message) bool { return m.Kind == k }
}
