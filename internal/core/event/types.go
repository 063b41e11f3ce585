package event

// --- Session lifecycle events ---

type SessionOpened struct {
	SessionID uint64
	Peer      string
}

// HandshakeCompleted is emitted once a session has its crypto box installed.
type HandshakeCompleted struct {
	SessionID uint64
}

type PlayerLoggedIn struct {
	SessionID  uint64
	AccountID  int32
	Name       string
	Standalone bool
}

// LoginRejected is emitted for every login that did not end authenticated.
// Reason is one of the Reject* constants.
type LoginRejected struct {
	SessionID uint64
	AccountID int32
	Reason    string
}

const (
	RejectAuth        = "auth"
	RejectDuplicate   = "duplicate"
	RejectMaintenance = "maintenance"
	RejectVersion     = "version"
	RejectRateLimited = "rate_limited"
)

// SessionClosed pairs with SessionOpened and fires for every connection
// once it is torn down.
type SessionClosed struct {
	SessionID uint64
}

// PlayerDisconnected fires after SessionClosed for sessions that had
// logged in.
type PlayerDisconnected struct {
	SessionID uint64
	AccountID int32
}

// --- Protocol events ---

// PacketRejected is emitted by the server pipeline whenever an inbound
// packet is refused instead of handled.
type PacketRejected struct {
	SessionID uint64
	Opcode    uint16
	Reason    string
}
