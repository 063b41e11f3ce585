package handler

import (
	"context"
	"errors"
	"io"
	gonet "net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Capeling/globed2-joeyy/internal/config"
	"github.com/Capeling/globed2-joeyy/internal/core/event"
	"github.com/Capeling/globed2-joeyy/internal/cryptobox"
	"github.com/Capeling/globed2-joeyy/internal/net"
	"github.com/Capeling/globed2-joeyy/internal/net/packet"
	"github.com/Capeling/globed2-joeyy/internal/token"
	"github.com/Capeling/globed2-joeyy/internal/world"
)

const testSecret = "test-secret-key"

type testEnv struct {
	deps *Deps
	srv  *net.Server
	addr string

	mu       sync.Mutex
	rejected []event.PacketRejected
	logins   []event.PlayerLoggedIn
	closed   int
	gone     []int32
}

type envOption func(*Deps, *config.Shared, *net.ServerOptions)

func withStandalone() envOption {
	return func(d *Deps, _ *config.Shared, _ *net.ServerOptions) { d.Standalone = true }
}

func withMaintenance() envOption {
	return func(_ *Deps, sh *config.Shared, _ *net.ServerOptions) { sh.Maintenance = true }
}

func withLoginLimit(perMinute int) envOption {
	return func(d *Deps, _ *config.Shared, _ *net.ServerOptions) { d.LoginLimiter = net.NewIPLimiter(perMinute) }
}

func withKeepaliveTimeout(d time.Duration) envOption {
	return func(_ *Deps, _ *config.Shared, o *net.ServerOptions) { o.KeepaliveTimeout = d }
}

func newEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	store, err := config.NewStore(config.Defaults())
	require.NoError(t, err)
	keys, err := cryptobox.GenerateKeyPair()
	require.NoError(t, err)

	bus := event.NewBus()
	deps := &Deps{
		Config: store,
		Log:    zap.NewNop(),
		World:  world.NewState(),
		Keys:   keys,
		Bus:    bus,
	}
	sh := config.Shared{TickRate: 30, TokenExpiry: time.Minute, SecretKey: testSecret}
	srvOpts := net.ServerOptions{
		BindAddress: "127.0.0.1:0",
		ReadTimeout: 5 * time.Second,
		Session:     net.SessionOptions{OutQueueSize: 64, WriteTimeout: time.Second},
	}
	for _, opt := range opts {
		opt(deps, &sh, &srvOpts)
	}
	store.Replace(sh)

	env := &testEnv{deps: deps}
	event.Subscribe(bus, func(ev event.PacketRejected) {
		env.mu.Lock()
		env.rejected = append(env.rejected, ev)
		env.mu.Unlock()
	})
	event.Subscribe(bus, func(ev event.PlayerLoggedIn) {
		env.mu.Lock()
		env.logins = append(env.logins, ev)
		env.mu.Unlock()
	})

	event.Subscribe(bus, func(event.SessionClosed) {
		env.mu.Lock()
		env.closed++
		env.mu.Unlock()
	})
	event.Subscribe(bus, func(ev event.PlayerDisconnected) {
		env.mu.Lock()
		env.gone = append(env.gone, ev.AccountID)
		env.mu.Unlock()
	})

	reg := packet.NewRegistry()
	RegisterAll(reg, deps)
	srv := net.NewServer(srvOpts, reg, deps.Log, bus)
	srv.OnClose(OnSessionClosed(deps))
	require.NoError(t, srv.Listen())
	env.srv = srv
	env.addr = srv.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-served
	})
	return env
}

func (e *testEnv) rejectReasons() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.rejected))
	for _, ev := range e.rejected {
		out = append(out, ev.Reason)
	}
	return out
}

// closeEvents returns the SessionClosed count and the accounts reported by
// PlayerDisconnected.
func (e *testEnv) closeEvents() (int, []int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed, append([]int32(nil), e.gone...)
}

func (e *testEnv) loginCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.logins)
}

// testClient speaks the client side of the protocol.
type testClient struct {
	t    *testing.T
	conn gonet.Conn
	box  *cryptobox.Box
}

func (e *testEnv) dial(t *testing.T) *testClient {
	t.Helper()
	conn, err := gonet.Dial("tcp", e.addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(p packet.Outbound) {
	c.t.Helper()
	w := packet.NewWriter()
	p.Encode(w)
	body := w.Bytes()
	encrypted := p.Encrypted() && c.box != nil
	if encrypted {
		var err error
		body, err = c.box.Encrypt(body)
		require.NoError(c.t, err)
	}
	c.sendRaw(packet.Header{Opcode: p.Opcode(), Encrypted: encrypted}, body)
}

func (c *testClient) sendRaw(h packet.Header, body []byte) {
	c.t.Helper()
	require.NoError(c.t, net.WriteFrame(c.conn, packet.AppendHeader(h, body)))
}

// recv returns the next packet, decrypted if flagged.
func (c *testClient) recv() (uint16, *packet.Reader, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	payload, err := net.ReadFrame(c.conn)
	if err != nil {
		return 0, nil, err
	}
	h, body, err := packet.ParseHeader(payload)
	if err != nil {
		return 0, nil, err
	}
	if h.Encrypted {
		if c.box == nil {
			return 0, nil, errors.New("encrypted packet before handshake")
		}
		if body, err = c.box.Decrypt(body); err != nil {
			return 0, nil, err
		}
	}
	return h.Opcode, packet.NewReader(body), nil
}

func (c *testClient) expect(opcode uint16) *packet.Reader {
	c.t.Helper()
	op, r, err := c.recv()
	require.NoError(c.t, err)
	require.Equal(c.t, packet.OpcodeName(opcode), packet.OpcodeName(op))
	return r
}

func (c *testClient) expectString(opcode uint16) string {
	c.t.Helper()
	r := c.expect(opcode)
	s := r.ReadS(4096)
	require.NoError(c.t, r.Err())
	return s
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	_, _, err := c.recv()
	require.Error(c.t, err)
	require.True(c.t, errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || isConnReset(err), "got %v", err)
}

func isConnReset(err error) bool {
	var op *gonet.OpError
	return errors.As(err, &op) && !op.Timeout()
}

func (c *testClient) handshake() {
	c.t.Helper()
	keys, err := cryptobox.GenerateKeyPair()
	require.NoError(c.t, err)
	c.send(packet.CryptoHandshakeStart{Protocol: packet.ProtocolVersion, Key: keys.Public})

	r := c.expect(packet.S_OPCODE_CRYPTO_HANDSHAKE)
	var serverKey [cryptobox.KeySize]byte
	copy(serverKey[:], r.ReadBytes(cryptobox.KeySize))
	require.NoError(c.t, r.Err())
	c.box, err = cryptobox.NewBox(serverKey, keys.Secret)
	require.NoError(c.t, err)
}

func loginPacket(t *testing.T, accountID int32, name string) packet.Login {
	t.Helper()
	tok, err := token.Issue(accountID, name, time.Now(), testSecret, time.Minute)
	require.NoError(t, err)
	return packet.Login{
		Protocol:  packet.ProtocolVersion,
		AccountID: accountID,
		Name:      name,
		Token:     tok,
		Icons:     packet.PlayerIconData{Cube: 12, Color1: 3, Color2: 4},
	}
}

// login performs handshake and login and expects success.
func (c *testClient) login(accountID int32, name string) {
	c.t.Helper()
	c.handshake()
	c.send(loginPacket(c.t, accountID, name))
	r := c.expect(packet.S_OPCODE_LOGGED_IN)
	require.Equal(c.t, uint32(30), r.ReadD())
}

func (c *testClient) ping(id uint32) (echo, players uint32) {
	c.t.Helper()
	c.send(packet.Ping{ID: id})
	r := c.expect(packet.S_OPCODE_PING_RESPONSE)
	echo, players = r.ReadD(), r.ReadD()
	require.NoError(c.t, r.Err())
	return echo, players
}
