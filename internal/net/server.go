package net

import (
	"context"
	"errors"
	"fmt"
	gonet "net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Capeling/globed2-joeyy/internal/core/event"
	"github.com/Capeling/globed2-joeyy/internal/net/packet"
)

const (
	shutdownMessage         = "server is shutting down"
	keepaliveTimeoutMessage = "timed out: no keepalive received"
)

// ServerOptions configures the TCP front end.
type ServerOptions struct {
	BindAddress string
	ReadTimeout time.Duration // idle limit between two frames, 0 = none
	// KeepaliveTimeout drops authenticated sessions whose LastSeen is older
	// than this. 0 = off.
	KeepaliveTimeout time.Duration
	Session          SessionOptions
}

// Server accepts client connections and runs every inbound packet through
// the same pipeline: header parse, rate limit, decrypt, state-gated
// dispatch, error policy.
type Server struct {
	opts     ServerOptions
	reg      *packet.Registry
	log      *zap.Logger
	bus      *event.Bus
	sessions *SessionStore
	nextID   atomic.Uint64
	onClose  func(*Session)
	closing  atomic.Bool

	ln gonet.Listener
	wg sync.WaitGroup
}

func NewServer(opts ServerOptions, reg *packet.Registry, log *zap.Logger, bus *event.Bus) *Server {
	return &Server{
		opts:     opts,
		reg:      reg,
		log:      log,
		bus:      bus,
		sessions: NewSessionStore(),
	}
}

// OnClose sets the hook run once per session after it is terminated and
// its socket closed. Must be set before Serve.
func (srv *Server) OnClose(fn func(*Session)) { srv.onClose = fn }

func (srv *Server) Sessions() *SessionStore { return srv.sessions }

// Listen binds the listening socket.
func (srv *Server) Listen() error {
	ln, err := gonet.Listen("tcp", srv.opts.BindAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.opts.BindAddress, err)
	}
	srv.ln = ln
	return nil
}

// Addr is the bound address; valid after Listen.
func (srv *Server) Addr() gonet.Addr { return srv.ln.Addr() }

func (srv *Server) ListenAndServe(ctx context.Context) error {
	if err := srv.Listen(); err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve runs the accept loop until ctx is cancelled, then disconnects every
// session and waits for their goroutines to finish.
func (srv *Server) Serve(ctx context.Context) error {
	if srv.ln == nil {
		return errors.New("serve: Listen was not called")
	}
	srv.log.Info("listening", zap.String("addr", srv.ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() { srv.ln.Close() })
	defer stop()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	swept := make(chan struct{})
	go func() {
		defer close(swept)
		srv.sweepKeepalive(sweepCtx)
	}()

	var backoff time.Duration
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, gonet.ErrClosed) {
				break
			}
			backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
			srv.log.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		srv.wg.Add(1)
		go srv.serveConn(conn)
	}

	stopSweep()
	<-swept
	srv.closing.Store(true)
	srv.sessions.ForEach(func(s *Session) { s.Disconnect(shutdownMessage) })
	srv.wg.Wait()
	srv.log.Info("server stopped")
	return nil
}

func (srv *Server) serveConn(conn gonet.Conn) {
	defer srv.wg.Done()

	sess := NewSession(srv.nextID.Add(1), conn, srv.log, srv.opts.Session)
	srv.sessions.Add(sess)
	event.Emit(srv.bus, event.SessionOpened{SessionID: sess.ID, Peer: sess.Peer})
	sess.Log().Debug("connection accepted")
	if srv.closing.Load() {
		// accepted while Serve was shutting down and missed by its sweep
		sess.Disconnect(shutdownMessage)
	}

	defer func() {
		sess.Terminate()
		<-sess.Done()
		srv.sessions.Remove(sess.ID)
		if srv.onClose != nil {
			srv.onClose(sess)
		}
		event.Emit(srv.bus, event.SessionClosed{SessionID: sess.ID})
		if id := sess.AccountID(); id != 0 {
			event.Emit(srv.bus, event.PlayerDisconnected{SessionID: sess.ID, AccountID: id})
		}
		sess.Log().Debug("connection closed")
	}()

	for !sess.Terminated() {
		if srv.opts.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(srv.opts.ReadTimeout))
		}
		payload, err := ReadFrame(conn)
		if err != nil {
			var ne gonet.Error
			if errors.As(err, &ne) && ne.Timeout() && !sess.Terminated() {
				sess.Log().Info("idle timeout")
			} else if !sess.Terminated() {
				sess.Log().Debug("read failed", zap.Error(err))
			}
			return
		}
		srv.handlePayload(sess, payload)
	}
}

// sweepKeepalive disconnects authenticated sessions that stopped sending
// keepalives. Sessions still logging in are bounded by the read deadline.
func (srv *Server) sweepKeepalive(ctx context.Context) {
	timeout := srv.opts.KeepaliveTimeout
	if timeout <= 0 {
		return
	}
	ticker := time.NewTicker(max(timeout/4, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			srv.sessions.ForEach(func(s *Session) {
				if s.State() != packet.StateAuthenticated {
					return
				}
				if idle := now.Sub(s.LastSeen()); idle > timeout {
					s.Log().Info("keepalive timeout", zap.Duration("idle", idle))
					s.Disconnect(keepaliveTimeoutMessage)
				}
			})
		}
	}
}

// handlePayload runs one inbound payload through the packet pipeline.
func (srv *Server) handlePayload(sess *Session, payload []byte) {
	h, body, err := packet.ParseHeader(payload)
	if err != nil {
		srv.reject(sess, 0, "malformed", err)
		sess.Disconnect("protocol error: malformed packet")
		return
	}
	if sess.Terminated() {
		srv.reject(sess, h.Opcode, "terminated", ErrSessionTerminated)
		return
	}
	if !sess.AllowPacket() {
		srv.reject(sess, h.Opcode, "rate_limited", ErrRateLimited)
		return
	}

	box := sess.Crypto().Get()
	switch {
	case h.Encrypted && box == nil:
		srv.reject(sess, h.Opcode, "handshake_required", ErrHandshakeRequired)
		sess.Disconnect("protocol error: encrypted packet sent before the crypto handshake")
		return
	case h.Encrypted:
		body, err = box.Decrypt(body)
		if err != nil {
			srv.reject(sess, h.Opcode, "decrypt_failed", err)
			sess.Disconnect("protocol error: failed to decrypt packet")
			return
		}
	case box == nil && h.Opcode != packet.C_OPCODE_CRYPTO_HANDSHAKE && h.Opcode != packet.C_OPCODE_DISCONNECT:
		srv.reject(sess, h.Opcode, "handshake_required", ErrHandshakeRequired)
		sess.Disconnect("protocol error: crypto handshake required")
		return
	}

	err = srv.reg.Dispatch(sess, sess.State(), h, body)
	if err == nil {
		return
	}

	var stateErr *packet.StateError
	var discErr *DisconnectError
	switch {
	case errors.As(err, &stateErr):
		if stateErr.State != packet.StateAuthenticated && srv.reg.Allowed(h.Opcode, packet.StateAuthenticated) {
			srv.reject(sess, h.Opcode, "not_authenticated", fmt.Errorf("%w: %w", ErrNotAuthenticated, err))
		} else {
			srv.reject(sess, h.Opcode, "wrong_state", err)
		}
	case errors.Is(err, packet.ErrEncryptionRequired):
		srv.reject(sess, h.Opcode, "encryption_required", err)
		sess.Disconnect("protocol error: packet must be encrypted")
	case errors.As(err, &discErr):
		srv.reject(sess, h.Opcode, "disconnect", err)
		sess.Disconnect(discErr.Reason)
	case errors.Is(err, ErrMalformedPacket):
		srv.reject(sess, h.Opcode, "malformed", err)
		sess.Disconnect("protocol error: malformed packet")
	case sess.Terminated():
		// handler already answered and closed the session
		sess.Log().Warn("session closed by handler",
			zap.String("opcode", packet.OpcodeName(h.Opcode)), zap.Error(err))
	default:
		sess.Log().Warn("handler failed",
			zap.String("opcode", packet.OpcodeName(h.Opcode)), zap.Error(err))
	}
}

func (srv *Server) reject(sess *Session, opcode uint16, reason string, err error) {
	log := sess.Log()
	fields := []zap.Field{zap.String("opcode", packet.OpcodeName(opcode)), zap.String("reason", reason), zap.Error(err)}
	if reason == "rate_limited" || reason == "terminated" {
		log.Debug("packet dropped", fields...)
	} else {
		log.Warn("packet rejected", fields...)
	}
	event.Emit(srv.bus, event.PacketRejected{SessionID: sess.ID, Opcode: opcode, Reason: reason})
}
