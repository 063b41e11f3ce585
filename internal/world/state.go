package world

import "sync/atomic"

// State is the server-wide player state shared by all sessions.
type State struct {
	playerCount atomic.Uint32

	Directory *Directory
	Rooms     *RoomManager
}

func NewState() *State {
	return &State{
		Directory: NewDirectory(),
		Rooms:     NewRoomManager(),
	}
}

// PlayerCount is the number of logged-in players.
func (s *State) PlayerCount() uint32 { return s.playerCount.Load() }

// IncPlayers is called once per successful login, after Register.
func (s *State) IncPlayers() { s.playerCount.Add(1) }

// Remove drops accountID from the directory and its room. The counter is
// decremented only when the account was registered, so calling Remove again
// (or for a session that never logged in) changes nothing.
func (s *State) Remove(accountID int32) bool {
	if accountID == 0 {
		return false
	}
	s.Rooms.RemovePlayer(accountID)
	if !s.Directory.Remove(accountID) {
		return false
	}
	s.playerCount.Add(^uint32(0))
	return true
}
