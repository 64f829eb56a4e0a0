package chart

import "sync"

// Store keeps the latest frame of every chart.
type Store struct {
	mu     sync.RWMutex
	frames map[Kind]Frame
}

func NewStore() *Store {
	return &Store{frames: make(map[Kind]Frame)}
}

func (s *Store) Replace(f Frame) {
	s.mu.Lock()
	s.frames[f.Kind] = f
	s.mu.Unlock()
}

// Get returns the latest frame of kind k.
func (s *Store) Get(k Kind) (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.frames[k]
	return f, ok
}
