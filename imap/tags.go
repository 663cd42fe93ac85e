package imap

// Structs

// TagTracker remembers every tag a client used within one
// session. Tags are never released by the dispatcher, so a
// tag cannot be replayed even after its completion was sent.
type TagTracker struct {
	seen map[string]struct{}
}

// Functions

// NewTagTracker returns an empty tracker.
func NewTagTracker() *TagTracker {

	return &TagTracker{
		seen: make(map[string]struct{}),
	}
}

// Observe records tag and reports whether it had already
// been recorded before.
func (t *TagTracker) Observe(tag string) bool {

	if _, found := t.seen[tag]; found {
		return true
	}

	t.seen[tag] = struct{}{}

	return false
}

// Release forgets tag again.
func (t *TagTracker) Release(tag string) {
	delete(t.seen, tag)
}

// Len returns the number of recorded tags.
func (t *TagTracker) Len() int {
	return len(t.seen)
}
