package net

import (
	"errors"

	"github.com/Capeling/globed2-joeyy/internal/net/packet"
)

var (
	ErrProtocolVersionMismatch  = errors.New("protocol version mismatch")
	ErrCryptoAlreadyEstablished = errors.New("attempting to perform a second handshake in one session")
	ErrMalformedPacket          = packet.ErrMalformed
	ErrAuthenticationFailed     = errors.New("authentication failed")
	ErrDuplicateLogin           = errors.New("duplicate login")
	ErrMaintenanceActive        = errors.New("server is under maintenance")
	ErrNotAuthenticated         = errors.New("not authenticated")
	ErrSessionTerminated        = errors.New("session terminated")
	ErrHandshakeRequired        = errors.New("crypto handshake required")
	ErrRateLimited              = errors.New("rate limited")
)

// DisconnectError marks a handler error the server answers by sending
// Reason to the client and closing the session.
type DisconnectError struct {
	Reason string
	Err    error
}

func (e *DisconnectError) Error() string {
	if e.Err == nil {
		return "disconnect: " + e.Reason
	}
	return e.Err.Error()
}

func (e *DisconnectError) Unwrap() error { return e.Err }

// Disconnect wraps err so the pipeline disconnects the client with reason.
func Disconnect(err error, reason string) error {
	return &DisconnectError{Reason: reason, Err: err}
}
