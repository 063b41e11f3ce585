package config

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/Capeling/globed2-joeyy/internal/data"
)

// Shared is the part of the configuration every session reads at runtime.
type Shared struct {
	Maintenance  bool
	TickRate     uint32
	SpecialUsers map[int32]data.SpecialUser
	TokenExpiry  time.Duration
	SecretKey    string
}

// SharedFrom extracts the runtime values from cfg, loading the special user
// table when one is configured.
func SharedFrom(cfg *Config) (Shared, error) {
	sh := Shared{
		Maintenance:  cfg.Game.Maintenance,
		TickRate:     cfg.Game.TickRate,
		SpecialUsers: map[int32]data.SpecialUser{},
		TokenExpiry:  cfg.Auth.TokenExpiry,
		SecretKey:    cfg.Auth.SecretKey,
	}
	if cfg.Auth.SpecialUsersFile != "" {
		table, err := data.LoadSpecialUserTable(cfg.Auth.SpecialUsersFile)
		if err != nil {
			return Shared{}, err
		}
		sh.SpecialUsers = table.Map()
	}
	return sh, nil
}

// Store is the server-wide runtime configuration. Readers take the read lock
// only long enough to copy a value out; Reload swaps contents in place so
// sessions holding the Store keep working.
type Store struct {
	mu     sync.RWMutex
	shared Shared
}

// NewStore builds a Store from a loaded Config.
func NewStore(cfg *Config) (*Store, error) {
	sh, err := SharedFrom(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{}
	s.Replace(sh)
	return s, nil
}

// Reload re-reads the config file at path and replaces the store contents.
// Parsing happens before the lock is taken; on error the store is untouched.
func (s *Store) Reload(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	sh, err := SharedFrom(cfg)
	if err != nil {
		return fmt.Errorf("reload %s: %w", path, err)
	}
	s.Replace(sh)
	return nil
}

// Replace installs sh as the new contents.
func (s *Store) Replace(sh Shared) {
	sh.SpecialUsers = maps.Clone(sh.SpecialUsers)
	if sh.SpecialUsers == nil {
		sh.SpecialUsers = map[int32]data.SpecialUser{}
	}
	s.mu.Lock()
	s.shared = sh
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current contents.
func (s *Store) Snapshot() Shared {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh := s.shared
	sh.SpecialUsers = maps.Clone(s.shared.SpecialUsers)
	return sh
}

func (s *Store) Maintenance() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shared.Maintenance
}

func (s *Store) TickRate() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shared.TickRate
}

// SpecialUser returns a copy of the special user record for accountID.
func (s *Store) SpecialUser(accountID int32) (data.SpecialUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	su, ok := s.shared.SpecialUsers[accountID]
	return su, ok
}

// TokenSettings returns what the token validator needs.
func (s *Store) TokenSettings() (secret string, expiry time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shared.SecretKey, s.shared.TokenExpiry
}
