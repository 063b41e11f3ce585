package packet

// SessionState is the protocol phase of a connection. Every registered opcode
// declares the states it may be handled in.
type SessionState int32

const (
	StateAwaitingHandshake SessionState = iota
	StateAwaitingLogin
	StateAuthenticated
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateAwaitingLogin:
		return "awaiting_login"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}
