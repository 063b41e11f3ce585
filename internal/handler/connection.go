package handler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Capeling/globed2-joeyy/internal/core/event"
	"github.com/Capeling/globed2-joeyy/internal/cryptobox"
	"github.com/Capeling/globed2-joeyy/internal/net"
	"github.com/Capeling/globed2-joeyy/internal/net/packet"
)

// checkProtocol turns a version mismatch into a disconnect that names the
// outdated side.
func checkProtocol(p uint16) error {
	switch {
	case p > packet.ProtocolVersion:
		return net.Disconnect(
			fmt.Errorf("%w: client v%d, server v%d", net.ErrProtocolVersionMismatch, p, packet.ProtocolVersion),
			fmt.Sprintf("Outdated server! You are running protocol v%d while the server is still on v%d.", p, packet.ProtocolVersion),
		)
	case p < packet.ProtocolVersion:
		return net.Disconnect(
			fmt.Errorf("%w: client v%d, server v%d", net.ErrProtocolVersionMismatch, p, packet.ProtocolVersion),
			fmt.Sprintf("Outdated client! Please update the mod in order to connect to the server. Client protocol version: v%d, server: v%d", p, packet.ProtocolVersion),
		)
	}
	return nil
}

// HandleCryptoHandshake processes C_CRYPTO_HANDSHAKE: derive the session box
// from the client's public key and answer with the server's.
func HandleCryptoHandshake(sess *net.Session, r *packet.Reader, deps *Deps) error {
	pkt, err := packet.DecodeCryptoHandshakeStart(r)
	if err != nil {
		return err
	}
	if err := checkProtocol(pkt.Protocol); err != nil {
		return err
	}

	cell := sess.Crypto()
	if cell.Established() {
		return net.Disconnect(net.ErrCryptoAlreadyEstablished, net.ErrCryptoAlreadyEstablished.Error())
	}
	box, err := cryptobox.NewBox(pkt.Key, deps.Keys.Secret)
	if err != nil {
		return net.Disconnect(fmt.Errorf("%w: %w", net.ErrMalformedPacket, err), "protocol error: invalid public key")
	}
	if err := cell.Install(box); err != nil {
		return net.Disconnect(fmt.Errorf("%w: %w", net.ErrCryptoAlreadyEstablished, err), net.ErrCryptoAlreadyEstablished.Error())
	}
	sess.CompareAndSwapState(packet.StateAwaitingHandshake, packet.StateAwaitingLogin)
	sess.Log().Debug("crypto handshake completed")
	event.Emit(deps.Bus, event.HandshakeCompleted{SessionID: sess.ID})

	return sess.Send(packet.CryptoHandshakeResponse{Key: deps.Keys.Public})
}

// HandlePing processes C_PING: echo the id with the online player count.
func HandlePing(sess *net.Session, r *packet.Reader, deps *Deps) error {
	pkt, err := packet.DecodePing(r)
	if err != nil {
		return err
	}
	return sess.Send(packet.PingResponse{ID: pkt.ID, PlayerCount: deps.World.PlayerCount()})
}

// HandleKeepalive processes C_KEEPALIVE.
func HandleKeepalive(sess *net.Session, r *packet.Reader, deps *Deps) error {
	if err := packet.DecodeEmpty(r, "keepalive"); err != nil {
		return err
	}
	sess.Touch()
	return sess.Send(packet.KeepaliveResponse{PlayerCount: deps.World.PlayerCount()})
}

// HandleDisconnect processes C_DISCONNECT. Cleanup happens in
// OnSessionClosed once the connection is gone.
func HandleDisconnect(sess *net.Session, _ *packet.Reader, _ *Deps) error {
	sess.Log().Info("client disconnected", zap.String("state", sess.State().String()))
	sess.Terminate()
	return nil
}

// OnSessionClosed returns the hook the server runs after a session is
// gone. It is the single place a player leaves the world.
func OnSessionClosed(deps *Deps) func(*net.Session) {
	return func(sess *net.Session) {
		id := sess.AccountID()
		if deps.World.Remove(id) {
			sess.Log().Info("player left", zap.Uint32("players_online", deps.World.PlayerCount()))
		}
	}
}
