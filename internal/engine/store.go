package engine

import "sync/atomic"

// Store holds the active engine configuration. Readers take a snapshot with
// Load and keep using it for the whole request; Swap replaces the value
// atomically so no request ever observes a partially updated config.
type Store struct {
	cfg atomic.Pointer[Config]
}

// NewStore creates a Store holding cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.cfg.Store(cfg)
	return s
}

// Load returns the current configuration snapshot.
func (s *Store) Load() *Config {
	return s.cfg.Load()
}

// Swap installs cfg and returns the previous configuration.
func (s *Store) Swap(cfg *Config) *Config {
	return s.cfg.Swap(cfg)
}
