package cryptobox

import (
	"errors"
	"sync/atomic"
)

// ErrAlreadyEstablished is returned when a second box is installed into a Cell.
var ErrAlreadyEstablished = errors.New("crypto box already established")

// Cell holds a session's box. It starts empty and can be filled exactly once;
// later installs fail and leave the original box in place.
type Cell struct {
	box atomic.Pointer[Box]
}

// Install stores b if the cell is still empty.
func (c *Cell) Install(b *Box) error {
	if b == nil {
		return errors.New("install nil box")
	}
	if !c.box.CompareAndSwap(nil, b) {
		return ErrAlreadyEstablished
	}
	return nil
}

// Get returns the installed box or nil.
func (c *Cell) Get() *Box { return c.box.Load() }

// Established reports whether a box has been installed.
func (c *Cell) Established() bool { return c.box.Load() != nil }
