package handler

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Capeling/globed2-joeyy/internal/net"
	"github.com/Capeling/globed2-joeyy/internal/net/packet"
	"github.com/Capeling/globed2-joeyy/internal/world"
)

// maxListedPlayers bounds a room listing so the packet always fits in one
// frame with maximum-length names.
const maxListedPlayers = 1000

// HandleCreateRoom processes C_CREATE_ROOM: a new room with the caller in it.
func HandleCreateRoom(sess *net.Session, r *packet.Reader, deps *Deps) error {
	if err := packet.DecodeEmpty(r, "create room"); err != nil {
		return err
	}
	room := deps.World.Rooms.CreateRoom(sess.AccountID())
	sess.Log().Debug("room created", zap.Uint32("room_id", room.ID))
	return sess.Send(packet.RoomCreated{RoomID: room.ID})
}

// HandleJoinRoom processes C_JOIN_ROOM.
func HandleJoinRoom(sess *net.Session, r *packet.Reader, deps *Deps) error {
	pkt, err := packet.DecodeJoinRoom(r)
	if err != nil {
		return err
	}
	if err := deps.World.Rooms.CreatePlayerInRoom(sess.AccountID(), pkt.RoomID); err != nil {
		if errors.Is(err, world.ErrRoomNotFound) {
			return sess.Send(packet.RoomJoinFailed{Message: "room not found"})
		}
		return err
	}
	return sess.Send(packet.RoomJoined{RoomID: pkt.RoomID})
}

// HandleLeaveRoom processes C_LEAVE_ROOM: back to the global room.
func HandleLeaveRoom(sess *net.Session, r *packet.Reader, deps *Deps) error {
	if err := packet.DecodeEmpty(r, "leave room"); err != nil {
		return err
	}
	if err := deps.World.Rooms.CreatePlayerInRoom(sess.AccountID(), world.GlobalRoomID); err != nil {
		return err
	}
	return sess.Send(packet.RoomJoined{RoomID: world.GlobalRoomID})
}

// HandleRoomPlayerList processes C_ROOM_PLAYER_LIST for the caller's room.
// Other players' data is copied out under their own account locks.
func HandleRoomPlayerList(sess *net.Session, r *packet.Reader, deps *Deps) error {
	if err := packet.DecodeEmpty(r, "room player list"); err != nil {
		return err
	}
	roomID, ok := deps.World.Rooms.RoomOf(sess.AccountID())
	if !ok {
		roomID = world.GlobalRoomID
	}
	room, ok := deps.World.Rooms.Get(roomID)
	if !ok {
		return sess.Send(packet.RoomPlayerList{RoomID: roomID})
	}

	ids := room.Players()
	players := make([]packet.PlayerPreview, 0, min(len(ids), maxListedPlayers))
	for _, id := range ids {
		if len(players) == maxListedPlayers {
			break
		}
		other := deps.World.Directory.Get(id)
		if other == nil {
			continue
		}
		acc := other.Account()
		players = append(players, packet.PlayerPreview{
			AccountID: acc.AccountID,
			Name:      acc.Name,
			Cube:      acc.Icons.Cube,
			Color1:    acc.Icons.Color1,
			Color2:    acc.Icons.Color2,
		})
	}
	return sess.Send(packet.RoomPlayerList{RoomID: roomID, Players: players})
}
