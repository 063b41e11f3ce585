package packet

import "fmt"

// Field limits for client-supplied strings.
const (
	MaxNameLength  = 32
	MaxTokenLength = 1024

	KeySize = 32
)

// Outbound is a server → client packet.
type Outbound interface {
	Opcode() uint16
	// Encrypted reports whether the body travels through the session's crypto box.
	Encrypted() bool
	Encode(w *Writer)
}

// decodeDone finishes a decoder: it surfaces the sticky reader error and
// rejects trailing bytes.
func decodeDone(r *Reader, what string) error {
	if err := r.Err(); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	if n := r.Remaining(); n != 0 {
		return fmt.Errorf("decode %s: %w: %d trailing bytes", what, ErrMalformed, n)
	}
	return nil
}

// --- client packets ---

type Ping struct {
	ID uint32
}

func DecodePing(r *Reader) (Ping, error) {
	p := Ping{ID: r.ReadD()}
	return p, decodeDone(r, "ping")
}

type CryptoHandshakeStart struct {
	Protocol uint16
	Key      [KeySize]byte
}

func DecodeCryptoHandshakeStart(r *Reader) (CryptoHandshakeStart, error) {
	var p CryptoHandshakeStart
	p.Protocol = r.ReadH()
	copy(p.Key[:], r.ReadBytes(KeySize))
	return p, decodeDone(r, "crypto handshake")
}

// PlayerIconData is the cosmetic selection a player shows to others.
type PlayerIconData struct {
	Cube        int16
	Ship        int16
	Ball        int16
	UFO         int16
	Wave        int16
	Robot       int16
	Spider      int16
	Swing       int16
	Jetpack     int16
	DeathEffect int16
	Color1      int16
	Color2      int16
	GlowColor   int16
}

func (d *PlayerIconData) fields() []*int16 {
	return []*int16{
		&d.Cube, &d.Ship, &d.Ball, &d.UFO, &d.Wave, &d.Robot, &d.Spider,
		&d.Swing, &d.Jetpack, &d.DeathEffect, &d.Color1, &d.Color2, &d.GlowColor,
	}
}

func (d *PlayerIconData) decode(r *Reader) {
	for _, f := range d.fields() {
		*f = int16(r.ReadH())
	}
}

func (d PlayerIconData) encode(w *Writer) {
	for _, f := range d.fields() {
		w.WriteH(uint16(*f))
	}
}

type Login struct {
	Protocol  uint16
	AccountID int32
	Name      string
	Token     string
	Icons     PlayerIconData
}

func DecodeLogin(r *Reader) (Login, error) {
	var p Login
	p.Protocol = r.ReadH()
	p.AccountID = int32(r.ReadD())
	p.Name = r.ReadS(MaxNameLength)
	p.Token = r.ReadS(MaxTokenLength)
	p.Icons.decode(r)
	return p, decodeDone(r, "login")
}

type JoinRoom struct {
	RoomID uint32
}

func DecodeJoinRoom(r *Reader) (JoinRoom, error) {
	p := JoinRoom{RoomID: r.ReadD()}
	return p, decodeDone(r, "join room")
}

// DecodeEmpty checks that a field-less packet really has no body.
func DecodeEmpty(r *Reader, what string) error {
	return decodeDone(r, what)
}

// --- server packets ---

type PingResponse struct {
	ID          uint32
	PlayerCount uint32
}

func (PingResponse) Opcode() uint16  { return S_OPCODE_PING_RESPONSE }
func (PingResponse) Encrypted() bool { return false }
func (p PingResponse) Encode(w *Writer) {
	w.WriteD(p.ID)
	w.WriteD(p.PlayerCount)
}

type CryptoHandshakeResponse struct {
	Key [KeySize]byte
}

func (CryptoHandshakeResponse) Opcode() uint16     { return S_OPCODE_CRYPTO_HANDSHAKE }
func (CryptoHandshakeResponse) Encrypted() bool    { return false }
func (p CryptoHandshakeResponse) Encode(w *Writer) { w.WriteBytes(p.Key[:]) }

type KeepaliveResponse struct {
	PlayerCount uint32
}

func (KeepaliveResponse) Opcode() uint16     { return S_OPCODE_KEEPALIVE }
func (KeepaliveResponse) Encrypted() bool    { return false }
func (p KeepaliveResponse) Encode(w *Writer) { w.WriteD(p.PlayerCount) }

// ServerDisconnect tells the client why the server is closing the connection.
// It is never encrypted so it can be sent in any state.
type ServerDisconnect struct {
	Message string
}

func (ServerDisconnect) Opcode() uint16     { return S_OPCODE_DISCONNECT }
func (ServerDisconnect) Encrypted() bool    { return false }
func (p ServerDisconnect) Encode(w *Writer) { w.WriteS(p.Message) }

type LoggedIn struct {
	TickRate uint32
}

func (LoggedIn) Opcode() uint16     { return S_OPCODE_LOGGED_IN }
func (LoggedIn) Encrypted() bool    { return true }
func (p LoggedIn) Encode(w *Writer) { w.WriteD(p.TickRate) }

type LoginFailed struct {
	Message string
}

func (LoginFailed) Opcode() uint16     { return S_OPCODE_LOGIN_FAILED }
func (LoginFailed) Encrypted() bool    { return false }
func (p LoginFailed) Encode(w *Writer) { w.WriteS(p.Message) }

type RoomCreated struct {
	RoomID uint32
}

func (RoomCreated) Opcode() uint16     { return S_OPCODE_ROOM_CREATED }
func (RoomCreated) Encrypted() bool    { return true }
func (p RoomCreated) Encode(w *Writer) { w.WriteD(p.RoomID) }

type RoomJoined struct {
	RoomID uint32
}

func (RoomJoined) Opcode() uint16     { return S_OPCODE_ROOM_JOINED }
func (RoomJoined) Encrypted() bool    { return true }
func (p RoomJoined) Encode(w *Writer) { w.WriteD(p.RoomID) }

type RoomJoinFailed struct {
	Message string
}

func (RoomJoinFailed) Opcode() uint16     { return S_OPCODE_ROOM_JOIN_FAILED }
func (RoomJoinFailed) Encrypted() bool    { return true }
func (p RoomJoinFailed) Encode(w *Writer) { w.WriteS(p.Message) }

// PlayerPreview is the per-player entry of a room listing.
type PlayerPreview struct {
	AccountID int32
	Name      string
	Cube      int16
	Color1    int16
	Color2    int16
}

type RoomPlayerList struct {
	RoomID  uint32
	Players []PlayerPreview
}

func (RoomPlayerList) Opcode() uint16  { return S_OPCODE_ROOM_PLAYER_LIST }
func (RoomPlayerList) Encrypted() bool { return true }
func (p RoomPlayerList) Encode(w *Writer) {
	w.WriteD(p.RoomID)
	w.WriteH(uint16(len(p.Players)))
	for _, pl := range p.Players {
		w.WriteD(uint32(pl.AccountID))
		w.WriteS(pl.Name)
		w.WriteH(uint16(pl.Cube))
		w.WriteH(uint16(pl.Color1))
		w.WriteH(uint16(pl.Color2))
	}
}

// Client packets also encode, so tools and tests can speak the protocol.

func (Ping) Opcode() uint16     { return C_OPCODE_PING }
func (Ping) Encrypted() bool    { return false }
func (p Ping) Encode(w *Writer) { w.WriteD(p.ID) }

func (CryptoHandshakeStart) Opcode() uint16  { return C_OPCODE_CRYPTO_HANDSHAKE }
func (CryptoHandshakeStart) Encrypted() bool { return false }
func (p CryptoHandshakeStart) Encode(w *Writer) {
	w.WriteH(p.Protocol)
	w.WriteBytes(p.Key[:])
}

func (Login) Opcode() uint16  { return C_OPCODE_LOGIN }
func (Login) Encrypted() bool { return true }
func (p Login) Encode(w *Writer) {
	w.WriteH(p.Protocol)
	w.WriteD(uint32(p.AccountID))
	w.WriteS(p.Name)
	w.WriteS(p.Token)
	p.Icons.encode(w)
}

func (JoinRoom) Opcode() uint16     { return C_OPCODE_JOIN_ROOM }
func (JoinRoom) Encrypted() bool    { return false }
func (p JoinRoom) Encode(w *Writer) { w.WriteD(p.RoomID) }

// Empty is a field-less client packet such as keepalive or disconnect.
type Empty uint16

func (e Empty) Opcode() uint16 { return uint16(e) }
func (Empty) Encrypted() bool  { return false }
func (Empty) Encode(*Writer)   {}
