package packet

// ProtocolVersion is the wire protocol revision this server speaks. Clients on
// any other revision are disconnected during the handshake or login.
const ProtocolVersion uint16 = 3

// Client → server opcodes.
const (
	C_OPCODE_PING             uint16 = 10000
	C_OPCODE_CRYPTO_HANDSHAKE uint16 = 10001
	C_OPCODE_KEEPALIVE        uint16 = 10002
	C_OPCODE_LOGIN            uint16 = 10003
	C_OPCODE_DISCONNECT       uint16 = 10004

	C_OPCODE_CREATE_ROOM      uint16 = 10010
	C_OPCODE_JOIN_ROOM        uint16 = 10011
	C_OPCODE_LEAVE_ROOM       uint16 = 10012
	C_OPCODE_ROOM_PLAYER_LIST uint16 = 10013
)

// Server → client opcodes.
const (
	S_OPCODE_PING_RESPONSE    uint16 = 20000
	S_OPCODE_CRYPTO_HANDSHAKE uint16 = 20001
	S_OPCODE_KEEPALIVE        uint16 = 20002
	S_OPCODE_DISCONNECT       uint16 = 20003
	S_OPCODE_LOGGED_IN        uint16 = 20004
	S_OPCODE_LOGIN_FAILED     uint16 = 20005

	S_OPCODE_ROOM_CREATED     uint16 = 20010
	S_OPCODE_ROOM_JOINED      uint16 = 20011
	S_OPCODE_ROOM_JOIN_FAILED uint16 = 20012
	S_OPCODE_ROOM_PLAYER_LIST uint16 = 20013
)

var opcodeNames = map[uint16]string{
	C_OPCODE_PING:             "C_PING",
	C_OPCODE_CRYPTO_HANDSHAKE: "C_CRYPTO_HANDSHAKE",
	C_OPCODE_KEEPALIVE:        "C_KEEPALIVE",
	C_OPCODE_LOGIN:            "C_LOGIN",
	C_OPCODE_DISCONNECT:       "C_DISCONNECT",
	C_OPCODE_CREATE_ROOM:      "C_CREATE_ROOM",
	C_OPCODE_JOIN_ROOM:        "C_JOIN_ROOM",
	C_OPCODE_LEAVE_ROOM:       "C_LEAVE_ROOM",
	C_OPCODE_ROOM_PLAYER_LIST: "C_ROOM_PLAYER_LIST",

	S_OPCODE_PING_RESPONSE:    "S_PING_RESPONSE",
	S_OPCODE_CRYPTO_HANDSHAKE: "S_CRYPTO_HANDSHAKE",
	S_OPCODE_KEEPALIVE:        "S_KEEPALIVE",
	S_OPCODE_DISCONNECT:       "S_DISCONNECT",
	S_OPCODE_LOGGED_IN:        "S_LOGGED_IN",
	S_OPCODE_LOGIN_FAILED:     "S_LOGIN_FAILED",
	S_OPCODE_ROOM_CREATED:     "S_ROOM_CREATED",
	S_OPCODE_ROOM_JOINED:      "S_ROOM_JOINED",
	S_OPCODE_ROOM_JOIN_FAILED: "S_ROOM_JOIN_FAILED",
	S_OPCODE_ROOM_PLAYER_LIST: "S_ROOM_PLAYER_LIST",
}

// OpcodeName returns a printable name for logs and metric labels.
func OpcodeName(op uint16) string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
