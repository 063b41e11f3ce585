package world

import (
	"errors"
	gonet "net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Capeling/globed2-joeyy/internal/net"
)

var nextSessionID atomic.Uint64

func newTestSession(t *testing.T) *net.Session {
	t.Helper()
	server, client := gonet.Pipe()
	s := net.NewSession(nextSessionID.Add(1), server, zap.NewNop(), net.SessionOptions{OutQueueSize: 4})
	t.Cleanup(func() {
		s.Terminate()
		client.Close()
	})
	return s
}

func TestDirectoryRegister(t *testing.T) {
	d := NewDirectory()
	a, b := newTestSession(t), newTestSession(t)

	require.NoError(t, d.Register(1, a))
	err := d.Register(1, b)
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Same(t, a, d.Get(1))
	assert.Equal(t, 1, d.Len())

	assert.True(t, d.Remove(1))
	assert.False(t, d.Remove(1))
	assert.Nil(t, d.Get(1))
	require.NoError(t, d.Register(1, b))
}

func TestDirectoryConcurrentRegisterOneWinner(t *testing.T) {
	d := NewDirectory()
	const n = 32
	sessions := make([]*net.Session, n)
	for i := range sessions {
		sessions[i] = newTestSession(t)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Register(77, s); err == nil {
				wins.Add(1)
			} else if !errors.Is(err, ErrAlreadyRegistered) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, d.Len())
}

func TestRoomsGlobalAlwaysExists(t *testing.T) {
	m := NewRoomManager()
	g := m.Global()
	require.NotNil(t, g)
	assert.Equal(t, GlobalRoomID, g.ID)

	require.NoError(t, m.CreatePlayerInRoom(1, GlobalRoomID))
	assert.True(t, m.RemovePlayer(1))
	_, ok := m.Get(GlobalRoomID)
	assert.True(t, ok, "global room survives becoming empty")
}

func TestRoomsMoveAndCleanup(t *testing.T) {
	m := NewRoomManager()
	require.NoError(t, m.CreatePlayerInRoom(1, GlobalRoomID))
	require.NoError(t, m.CreatePlayerInRoom(2, GlobalRoomID))

	r := m.CreateRoom(1)
	assert.GreaterOrEqual(t, r.ID, uint32(minRoomID))
	assert.LessOrEqual(t, r.ID, uint32(maxRoomID))
	assert.False(t, m.Global().Has(1))
	assert.True(t, r.Has(1))

	id, ok := m.RoomOf(1)
	require.True(t, ok)
	assert.Equal(t, r.ID, id)

	require.NoError(t, m.CreatePlayerInRoom(2, r.ID))
	assert.Equal(t, []int32{1, 2}, r.Players())
	assert.Equal(t, 0, m.Global().Len())

	require.NoError(t, m.CreatePlayerInRoom(1, GlobalRoomID))
	require.NoError(t, m.CreatePlayerInRoom(2, GlobalRoomID))
	_, ok = m.Get(r.ID)
	assert.False(t, ok, "empty room is deleted")
	assert.Equal(t, 1, m.Len())

	require.ErrorIs(t, m.CreatePlayerInRoom(1, r.ID), ErrRoomNotFound)
	assert.False(t, m.RemovePlayer(99))
}

func TestRoomsExactlyOneRoomPerPlayer(t *testing.T) {
	m := NewRoomManager()
	var wg sync.WaitGroup
	for i := int32(1); i <= 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.CreatePlayerInRoom(i, GlobalRoomID))
			r := m.CreateRoom(i)
			assert.True(t, r.Has(i))
			assert.NoError(t, m.CreatePlayerInRoom(i, GlobalRoomID))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.Global().Len())
	assert.Equal(t, 1, m.Len())
}

func TestStateRemoveIsIdempotent(t *testing.T) {
	st := NewState()
	s := newTestSession(t)

	require.NoError(t, st.Directory.Register(5, s))
	st.IncPlayers()
	require.NoError(t, st.Rooms.CreatePlayerInRoom(5, GlobalRoomID))
	assert.Equal(t, uint32(1), st.PlayerCount())

	assert.True(t, st.Remove(5))
	assert.False(t, st.Remove(5))
	assert.False(t, st.Remove(0))
	assert.Equal(t, uint32(0), st.PlayerCount())
	assert.Equal(t, 0, st.Rooms.Global().Len())
	assert.Nil(t, st.Directory.Get(5))
}
