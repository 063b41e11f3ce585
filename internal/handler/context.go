package handler

import (
	"time"

	"go.uber.org/zap"

	"github.com/Capeling/globed2-joeyy/internal/config"
	"github.com/Capeling/globed2-joeyy/internal/core/event"
	"github.com/Capeling/globed2-joeyy/internal/cryptobox"
	"github.com/Capeling/globed2-joeyy/internal/net"
	"github.com/Capeling/globed2-joeyy/internal/net/packet"
	"github.com/Capeling/globed2-joeyy/internal/world"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config       *config.Store
	Log          *zap.Logger
	World        *world.State
	Keys         *cryptobox.KeyPair // server key pair, generated at startup
	Bus          *event.Bus
	LoginLimiter *net.IPLimiter // nil = unlimited
	Standalone   bool           // skip token validation, trust client names
	Now          func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	liveStates := []packet.SessionState{
		packet.StateAwaitingHandshake, packet.StateAwaitingLogin, packet.StateAuthenticated,
	}

	// Handshake phase. Registered for every live state so a repeated
	// handshake reaches the handler and gets a proper disconnect.
	reg.Register(packet.C_OPCODE_CRYPTO_HANDSHAKE, liveStates,
		func(sess any, r *packet.Reader) error {
			return HandleCryptoHandshake(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_DISCONNECT, liveStates,
		func(sess any, r *packet.Reader) error {
			return HandleDisconnect(sess.(*net.Session), r, deps)
		},
	)

	// Login phase
	reg.Register(packet.C_OPCODE_PING,
		[]packet.SessionState{packet.StateAwaitingLogin, packet.StateAuthenticated},
		func(sess any, r *packet.Reader) error {
			return HandlePing(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_LOGIN,
		[]packet.SessionState{packet.StateAwaitingLogin},
		func(sess any, r *packet.Reader) error {
			return HandleLogin(sess.(*net.Session), r, deps)
		},
		packet.RequireEncrypted(),
	)

	// Authenticated phase
	authStates := []packet.SessionState{packet.StateAuthenticated}

	reg.Register(packet.C_OPCODE_KEEPALIVE, authStates,
		func(sess any, r *packet.Reader) error {
			return HandleKeepalive(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_CREATE_ROOM, authStates,
		func(sess any, r *packet.Reader) error {
			return HandleCreateRoom(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_JOIN_ROOM, authStates,
		func(sess any, r *packet.Reader) error {
			return HandleJoinRoom(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_LEAVE_ROOM, authStates,
		func(sess any, r *packet.Reader) error {
			return HandleLeaveRoom(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_ROOM_PLAYER_LIST, authStates,
		func(sess any, r *packet.Reader) error {
			return HandleRoomPlayerList(sess.(*net.Session), r, deps)
		},
	)
}
