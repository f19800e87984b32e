package prefs

import (
	"context"
	"sync"
)

// MemoryStore keeps preferences in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	lang string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Language implements Store.
func (s *MemoryStore) Language(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lang == "" {
		return DefaultLanguage, nil
	}
	return s.lang, nil
}

// SetLanguage implements Store.
func (s *MemoryStore) SetLanguage(_ context.Context, lang string) error {
	code, err := Normalize(lang)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lang = code
	s.mu.Unlock()
	return nil
}
