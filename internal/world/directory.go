package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Capeling/globed2-joeyy/internal/net"
)

// ErrAlreadyRegistered is returned by Register when the account already has
// a live session.
var ErrAlreadyRegistered = errors.New("account already logged in")

// Directory maps account ids to their logged-in session. It holds lookup
// references only; sessions are owned by the network server.
type Directory struct {
	mu      sync.RWMutex
	players map[int32]*net.Session
}

func NewDirectory() *Directory {
	return &Directory{players: make(map[int32]*net.Session)}
}

// Register inserts sess under accountID unless the account is already
// present. Check and insert happen under one lock, so of two concurrent
// logins for the same account exactly one succeeds.
func (d *Directory) Register(accountID int32, sess *net.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.players[accountID]; ok {
		return fmt.Errorf("account %d: %w", accountID, ErrAlreadyRegistered)
	}
	d.players[accountID] = sess
	return nil
}

func (d *Directory) Get(accountID int32) *net.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.players[accountID]
}

// Remove deletes accountID and reports whether it was present.
func (d *Directory) Remove(accountID int32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.players[accountID]; !ok {
		return false
	}
	delete(d.players, accountID)
	return true
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.players)
}
