package playback

import "log/slog"

// spokenCapacity bounds the already-spoken id set. Long-lived chat
// sessions re-render old messages constantly; once the set grows past
// this, it is cleared wholesale rather than evicted piecemeal.
const spokenCapacity = 100

// spokenSet tracks message ids that have already been spoken so that a
// re-render of the same logical message does not trigger duplicate
// playback. Not safe for concurrent use; the owning Session locks.
type spokenSet struct {
	ids map[string]struct{}
}

func newSpokenSet() *spokenSet {
	return &spokenSet{ids: make(map[string]struct{})}
}

// Contains reports whether id has been spoken.
func (s *spokenSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add records id, clearing the whole set first if it is at capacity.
func (s *spokenSet) Add(id string) {
	if id == "" {
		return
	}
	if len(s.ids) >= spokenCapacity {
		slog.Debug("spoken id set at capacity, clearing", "capacity", spokenCapacity)
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

// Remove forgets id so it can be spoken again (replay).
func (s *spokenSet) Remove(id string) {
	delete(s.ids, id)
}
