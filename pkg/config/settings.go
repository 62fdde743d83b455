package config

import (
	"sync"
	"time"
)

// AppSettings is the settings provider consumed by the poll core: whether
// poll creation is enabled and each user's relevance window. Per-user
// offsets override the configured default.
type AppSettings struct {
	mu              sync.RWMutex
	creationAllowed bool
	defaultOffset   int64
	userOffsets     map[string]int64
}

// NewAppSettings builds the provider from the loaded configuration.
func NewAppSettings(cfg *AppConfig) *AppSettings {
	return &AppSettings{
		creationAllowed: cfg.PollCreationAllowed,
		defaultOffset:   int64(cfg.RelevantOffsetDays) * int64(24*time.Hour/time.Second),
		userOffsets:     make(map[string]int64),
	}
}

// PollCreationAllowed reports whether new polls may be created.
func (s *AppSettings) PollCreationAllowed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creationAllowed
}

// SetPollCreationAllowed toggles poll creation at runtime.
func (s *AppSettings) SetPollCreationAllowed(allowed bool) {
	s.mu.Lock()
	s.creationAllowed = allowed
	s.mu.Unlock()
}

// RelevantOffset returns the relevance window for a user, in seconds.
func (s *AppSettings) RelevantOffset(userID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset, ok := s.userOffsets[userID]; ok {
		return offset
	}
	return s.defaultOffset
}

// SetUserOffset stores a per-user relevance window preference, in seconds.
func (s *AppSettings) SetUserOffset(userID string, offset int64) {
	s.mu.Lock()
	s.userOffsets[userID] = offset
	s.mu.Unlock()
}
