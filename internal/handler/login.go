package handler

import (
	"errors"
	"fmt"
	gonet "net"
	"strings"

	"go.uber.org/zap"

	"github.com/Capeling/globed2-joeyy/internal/core/event"
	"github.com/Capeling/globed2-joeyy/internal/data"
	"github.com/Capeling/globed2-joeyy/internal/net"
	"github.com/Capeling/globed2-joeyy/internal/net/packet"
	"github.com/Capeling/globed2-joeyy/internal/token"
	"github.com/Capeling/globed2-joeyy/internal/world"
)

const (
	maintenanceMessage    = "The server is currently under maintenance, please try connecting again later."
	tooManyLoginsMessage  = "Too many login attempts, please try again later."
	duplicateLoginMessage = "duplicate login: this account is already connected to the server"
)

// HandleLogin processes C_LOGIN (AwaitingLogin only, encrypted). On success
// the session is registered, placed in the global room and moved to
// Authenticated; every failure path ends the session.
func HandleLogin(sess *net.Session, r *packet.Reader, deps *Deps) error {
	pkt, err := packet.DecodeLogin(r)
	if err != nil {
		return err
	}
	reject := func(reason string) {
		event.Emit(deps.Bus, event.LoginRejected{SessionID: sess.ID, AccountID: pkt.AccountID, Reason: reason})
	}

	if err := checkProtocol(pkt.Protocol); err != nil {
		reject(event.RejectVersion)
		return err
	}
	if !deps.LoginLimiter.Allow(remoteIP(sess.Peer), deps.now()) {
		reject(event.RejectRateLimited)
		return net.Disconnect(net.ErrRateLimited, tooManyLoginsMessage)
	}
	if pkt.AccountID <= 0 {
		return fmt.Errorf("%w: account id %d", net.ErrMalformedPacket, pkt.AccountID)
	}
	if deps.Config.Maintenance() {
		reject(event.RejectMaintenance)
		return net.Disconnect(net.ErrMaintenanceActive, maintenanceMessage)
	}

	name := pkt.Name
	if !deps.Standalone {
		secret, expiry := deps.Config.TokenSettings()
		name, err = token.Validate(pkt.AccountID, pkt.Token, deps.now(), secret, expiry)
		if err != nil {
			reject(event.RejectAuth)
			failLogin(sess, "authentication failed: "+err.Error())
			return fmt.Errorf("%w: %w", net.ErrAuthenticationFailed, err)
		}
	}

	if len(name) > packet.MaxNameLength {
		name = strings.ToValidUTF8(name[:packet.MaxNameLength], "")
	}

	if err := deps.World.Directory.Register(pkt.AccountID, sess); err != nil {
		reject(event.RejectDuplicate)
		failLogin(sess, duplicateLoginMessage)
		return fmt.Errorf("%w: %w", net.ErrDuplicateLogin, err)
	}
	sess.SetAccountID(pkt.AccountID)
	deps.World.IncPlayers()

	var special *data.SpecialUser
	if !deps.Standalone {
		if su, ok := deps.Config.SpecialUser(pkt.AccountID); ok {
			special = &su
		}
	}
	sess.WithAccount(func(a *net.AccountData) {
		a.AccountID = pkt.AccountID
		a.Icons = pkt.Icons
		a.Name = name
		a.Special = special
	})

	if err := deps.World.Rooms.CreatePlayerInRoom(pkt.AccountID, world.GlobalRoomID); err != nil {
		return fmt.Errorf("join global room: %w", err)
	}

	sess.Log().Info("login successful",
		zap.String("name", name), zap.Bool("special", special != nil),
		zap.Uint32("players_online", deps.World.PlayerCount()))

	if err := sess.Send(packet.LoggedIn{TickRate: deps.Config.TickRate()}); err != nil {
		return err
	}
	sess.Touch()
	sess.SetState(packet.StateAuthenticated)
	event.Emit(deps.Bus, event.PlayerLoggedIn{
		SessionID: sess.ID, AccountID: pkt.AccountID, Name: name, Standalone: deps.Standalone,
	})
	return nil
}

// failLogin tells the client why and closes the session.
func failLogin(sess *net.Session, message string) {
	if err := sess.Send(packet.LoginFailed{Message: message}); err != nil && !errors.Is(err, net.ErrSessionTerminated) {
		sess.Log().Debug("login failure not sent", zap.Error(err))
	}
	sess.Terminate()
}

func remoteIP(peer string) string {
	host, _, err := gonet.SplitHostPort(peer)
	if err != nil {
		return peer
	}
	return host
}
