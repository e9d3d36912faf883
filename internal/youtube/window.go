package youtube

// RecentWindow is a bounded FIFO of recently seen message ids, used purely
// for de-duplication across overlapping poll batches.
type RecentWindow struct {
	capacity int
	order    []string
	seen     map[string]struct{}
}

// NewRecentWindow creates a window holding at most capacity ids.
func NewRecentWindow(capacity int) *RecentWindow {
	return &RecentWindow{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Observe records an id. It returns true when the id is new; an id already
// in the window returns false and leaves the window unchanged. When a new id
// pushes the window past capacity the oldest id is evicted.
func (w *RecentWindow) Observe(id string) bool {
	if _, ok := w.seen[id]; ok {
		return false
	}

	w.order = append(w.order, id)
	w.seen[id] = struct{}{}

	if len(w.order) > w.capacity {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.seen, oldest)
	}
	return true
}

// Len returns the number of ids currently held.
func (w *RecentWindow) Len() int {
	return len(w.order)
}
