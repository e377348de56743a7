package dedup

import "sync"

// SeenWindow tracks the most recent distinct tweet IDs a node has extracted,
// bounded by capacity with oldest-first eviction. The window is only a
// pagination hint sent upstream; it is not a correctness filter, which is why
// the SubmittedSet exists separately.
type SeenWindow struct {
	capacity int
	ids      []string
	index    map[string]struct{}
	mu       sync.Mutex
}

// DefaultWindowSize is the number of recent tweet IDs carried as an
// exclusion hint on timeline requests.
const DefaultWindowSize = 50

// NewSeenWindow creates a window with the given capacity.
func NewSeenWindow(capacity int) *SeenWindow {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &SeenWindow{
		capacity: capacity,
		index:    make(map[string]struct{}),
	}
}

// Contains reports whether id is currently in the window.
func (w *SeenWindow) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.index[id]
	return ok
}

// Merge appends any IDs not already present in insertion order, then evicts
// the oldest entries beyond capacity.
func (w *SeenWindow) Merge(ids []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := w.index[id]; ok {
			continue
		}
		w.ids = append(w.ids, id)
		w.index[id] = struct{}{}
	}

	if excess := len(w.ids) - w.capacity; excess > 0 {
		for _, old := range w.ids[:excess] {
			delete(w.index, old)
		}
		w.ids = append([]string(nil), w.ids[excess:]...)
	}
}

// IDs returns the window contents oldest-first.
func (w *SeenWindow) IDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.ids))
	copy(out, w.ids)
	return out
}

// Len returns the current number of IDs in the window.
func (w *SeenWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ids)
}

// SubmittedSet records post URLs already submitted to the rewards API for
// the lifetime of the process. It grows monotonically; entries are never
// evicted, so a URL that was recorded once can never be submitted again.
type SubmittedSet struct {
	urls map[string]struct{}
	mu   sync.Mutex
}

// NewSubmittedSet creates an empty submitted-URL set.
func NewSubmittedSet() *SubmittedSet {
	return &SubmittedSet{urls: make(map[string]struct{})}
}

// ShouldSubmit reports whether url has not been submitted yet.
func (s *SubmittedSet) ShouldSubmit(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.urls[url]
	return !ok
}

// Record marks url as submitted.
func (s *SubmittedSet) Record(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls[url] = struct{}{}
}

// Len returns the number of recorded URLs.
func (s *SubmittedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}
