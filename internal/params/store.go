package params

import "sync"

// Provider hands out the current settings. Renderers call it once per frame.
type Provider interface {
	Settings() Settings
}

// Store is a concurrency-safe holder for live settings.
type Store struct {
	mu      sync.RWMutex
	current Settings
	version uint64
}

// NewStore sanitizes s and wraps it in a Store.
func NewStore(s Settings) *Store {
	s.Sanitize()
	return &Store{current: s.clone()}
}

// Settings returns a copy of the current settings.
func (st *Store) Settings() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current.clone()
}

// Set replaces the settings wholesale.
func (st *Store) Set(s Settings) {
	s.Sanitize()
	st.mu.Lock()
	st.current = s.clone()
	st.version++
	st.mu.Unlock()
}

// Update applies fn to a copy of the settings and stores the sanitized result.
func (st *Store) Update(fn func(*Settings)) Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	next := st.current.clone()
	fn(&next)
	next.Sanitize()
	st.current = next.clone()
	st.version++
	return next.clone()
}

// Version increases on every change.
func (st *Store) Version() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.version
}

func (s Settings) clone() Settings {
	if s.Disk.Color != nil {
		c := *s.Disk.Color
		s.Disk.Color = &c
	}
	if s.Parallax.Sources != nil {
		s.Parallax.Sources = append([]string(nil), s.Parallax.Sources...)
	}
	return s
}
