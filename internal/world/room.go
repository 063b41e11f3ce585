package world

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
)

// GlobalRoomID is the room every player lands in after login. It always
// exists.
const GlobalRoomID uint32 = 0

const (
	minRoomID = 100_000
	maxRoomID = 999_999
)

var ErrRoomNotFound = errors.New("room not found")

// Room is a set of account ids.
type Room struct {
	ID uint32

	mu      sync.RWMutex
	players map[int32]struct{}
}

func newRoom(id uint32) *Room {
	return &Room{ID: id, players: make(map[int32]struct{})}
}

func (r *Room) Has(accountID int32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.players[accountID]
	return ok
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Players returns the member account ids in ascending order.
func (r *Room) Players() []int32 {
	r.mu.RLock()
	ids := make([]int32, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (r *Room) add(accountID int32) {
	r.mu.Lock()
	r.players[accountID] = struct{}{}
	r.mu.Unlock()
}

// remove reports whether the room is empty afterwards.
func (r *Room) remove(accountID int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, accountID)
	return len(r.players) == 0
}

// RoomManager owns all rooms and which room each player is in. A player is
// in at most one room; membership moves happen under the manager lock.
type RoomManager struct {
	mu         sync.Mutex
	rooms      map[uint32]*Room
	membership map[int32]uint32 // accountID → roomID
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:      map[uint32]*Room{GlobalRoomID: newRoom(GlobalRoomID)},
		membership: make(map[int32]uint32),
	}
}

func (m *RoomManager) Global() *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[GlobalRoomID]
}

func (m *RoomManager) Get(roomID uint32) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// Len counts rooms, the global room included.
func (m *RoomManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// CreateRoom makes a room with a fresh random id and moves owner into it.
func (m *RoomManager) CreateRoom(owner int32) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	var id uint32
	for {
		id = uint32(minRoomID + rand.IntN(maxRoomID-minRoomID+1))
		if _, taken := m.rooms[id]; !taken {
			break
		}
	}
	r := newRoom(id)
	m.rooms[id] = r
	m.moveLocked(owner, r)
	return r
}

// CreatePlayerInRoom puts accountID into roomID, leaving its previous room.
func (m *RoomManager) CreatePlayerInRoom(accountID int32, roomID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	m.moveLocked(accountID, r)
	return nil
}

// RemovePlayer takes accountID out of whatever room it is in. Removing an
// unknown player is a no-op.
func (m *RoomManager) RemovePlayer(accountID int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(accountID)
}

// RoomOf returns the room accountID is in.
func (m *RoomManager) RoomOf(accountID int32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.membership[accountID]
	return id, ok
}

func (m *RoomManager) moveLocked(accountID int32, to *Room) {
	if cur, ok := m.membership[accountID]; ok && cur == to.ID {
		return
	}
	m.leaveLocked(accountID)
	to.add(accountID)
	m.membership[accountID] = to.ID
}

func (m *RoomManager) leaveLocked(accountID int32) bool {
	id, ok := m.membership[accountID]
	if !ok {
		return false
	}
	delete(m.membership, accountID)
	if r := m.rooms[id]; r != nil && r.remove(accountID) && id != GlobalRoomID {
		delete(m.rooms, id)
	}
	return true
}
