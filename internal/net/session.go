package net

import (
	"errors"
	"fmt"
	gonet "net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Capeling/globed2-joeyy/internal/cryptobox"
	"github.com/Capeling/globed2-joeyy/internal/data"
	"github.com/Capeling/globed2-joeyy/internal/net/packet"
)

// AccountData is what a session knows about its player after login.
type AccountData struct {
	AccountID int32
	Name      string
	Icons     packet.PlayerIconData
	Special   *data.SpecialUser // nil unless listed in the special user table
}

// Session is one client connection. The read goroutine owns packet
// handling; other goroutines may call Send, Account, Disconnect and
// Terminate.
type Session struct {
	ID   uint64
	Peer string // remote address, immutable

	conn         gonet.Conn
	log          atomic.Pointer[zap.Logger]
	writeTimeout time.Duration

	state     atomic.Int32
	crypto    cryptobox.Cell
	accountID atomic.Int32

	accMu   sync.Mutex
	account AccountData

	sendMu sync.Mutex // guards closing out
	out    chan []byte
	closed bool

	terminated atomic.Bool
	done       chan struct{}
	lastSeen   atomic.Int64
	limiter    *rate.Limiter
}

// SessionOptions carries per-connection tunables.
type SessionOptions struct {
	OutQueueSize     int
	WriteTimeout     time.Duration
	PacketsPerSecond int
}

// NewSession wraps conn and starts its write loop.
func NewSession(id uint64, conn gonet.Conn, log *zap.Logger, opts SessionOptions) *Session {
	if opts.OutQueueSize <= 0 {
		opts.OutQueueSize = 64
	}
	s := &Session{
		ID:           id,
		Peer:         conn.RemoteAddr().String(),
		conn:         conn,
		writeTimeout: opts.WriteTimeout,
		out:          make(chan []byte, opts.OutQueueSize),
		done:         make(chan struct{}),
		limiter:      newPacketLimiter(opts.PacketsPerSecond),
	}
	s.log.Store(log.With(zap.Uint64("session_id", id), zap.String("peer", s.Peer)))
	s.state.Store(int32(packet.StateAwaitingHandshake))
	s.Touch()
	go s.writeLoop()
	return s
}

// Log is the session's child logger.
func (s *Session) Log() *zap.Logger { return s.log.Load() }

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

// SetState moves the session to st. A terminated session stays terminated.
func (s *Session) SetState(st packet.SessionState) {
	for {
		cur := s.state.Load()
		if packet.SessionState(cur) == packet.StateTerminated {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			return
		}
	}
}

func (s *Session) CompareAndSwapState(from, to packet.SessionState) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// Crypto is the session's write-once crypto box slot.
func (s *Session) Crypto() *cryptobox.Cell { return &s.crypto }

// AccountID is zero until login succeeds.
func (s *Session) AccountID() int32 { return s.accountID.Load() }

func (s *Session) SetAccountID(id int32) {
	s.accountID.Store(id)
	s.log.Store(s.Log().With(zap.Int32("account_id", id)))
}

// WithAccount runs fn with the account lock held.
func (s *Session) WithAccount(fn func(*AccountData)) {
	s.accMu.Lock()
	defer s.accMu.Unlock()
	fn(&s.account)
}

// Account returns a copy of the account data.
func (s *Session) Account() AccountData {
	s.accMu.Lock()
	defer s.accMu.Unlock()
	a := s.account
	if a.Special != nil {
		su := *a.Special
		a.Special = &su
	}
	return a
}

// Touch records a keepalive. The server's keepalive sweep reads it back
// through LastSeen.
func (s *Session) Touch() { s.lastSeen.Store(time.Now().UnixNano()) }

func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// AllowPacket consumes one token from the session's packet bucket.
func (s *Session) AllowPacket() bool { return s.limiter.Allow() }

// Send encodes p, encrypts it when the packet type requires, and queues
// the frame. A full queue terminates the session.
func (s *Session) Send(p packet.Outbound) error {
	w := packet.NewWriter()
	p.Encode(w)
	body := w.Bytes()
	if p.Encrypted() {
		box := s.crypto.Get()
		if box == nil {
			return fmt.Errorf("send %s: %w", packet.OpcodeName(p.Opcode()), ErrHandshakeRequired)
		}
		sealed, err := box.Encrypt(body)
		if err != nil {
			return fmt.Errorf("send %s: %w", packet.OpcodeName(p.Opcode()), err)
		}
		body = sealed
	}
	payload := packet.AppendHeader(packet.Header{Opcode: p.Opcode(), Encrypted: p.Encrypted()}, body)
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("send %s: %w: %d bytes", packet.OpcodeName(p.Opcode()), ErrFrameTooLarge, len(payload))
	}

	s.sendMu.Lock()
	if s.closed {
		s.sendMu.Unlock()
		return ErrSessionTerminated
	}
	select {
	case s.out <- payload:
		s.sendMu.Unlock()
		return nil
	default:
	}
	s.sendMu.Unlock()

	s.Log().Warn("outbound queue full, dropping session")
	s.Terminate()
	return errors.New("outbound queue full")
}

// Disconnect sends a server disconnect with reason, then terminates.
func (s *Session) Disconnect(reason string) {
	if s.terminated.Load() {
		return
	}
	if err := s.Send(packet.ServerDisconnect{Message: reason}); err != nil {
		s.Log().Debug("disconnect message not sent", zap.Error(err))
	}
	s.Terminate()
}

// Terminate marks the session terminated and closes the outbound queue.
// The write loop flushes what is queued, then closes the socket. Safe to
// call more than once and from any goroutine.
func (s *Session) Terminate() {
	if !s.terminated.CompareAndSwap(false, true) {
		return
	}
	s.state.Store(int32(packet.StateTerminated))
	s.sendMu.Lock()
	s.closed = true
	close(s.out)
	s.sendMu.Unlock()
}

func (s *Session) Terminated() bool { return s.terminated.Load() }

// Done is closed once the socket is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) writeLoop() {
	defer close(s.done)
	defer s.conn.Close()
	for payload := range s.out {
		if s.writeTimeout > 0 {
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		if err := WriteFrame(s.conn, payload); err != nil {
			s.Log().Debug("write failed", zap.Error(err))
			s.Terminate()
			return
		}
	}
}
