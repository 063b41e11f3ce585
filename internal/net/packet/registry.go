package packet

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnknownOpcode is returned for opcodes nobody registered.
	ErrUnknownOpcode = fmt.Errorf("%w: unknown opcode", ErrMalformed)
	// ErrEncryptionRequired is returned when a route only accepts encrypted bodies.
	ErrEncryptionRequired = errors.New("packet must be encrypted")
)

// StateError reports a packet that arrived in a state its route does not allow.
type StateError struct {
	Opcode uint16
	State  SessionState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", OpcodeName(e.Opcode), e.State)
}

// HandlerFunc handles one decoded packet body. sess is the owning session;
// handlers assert it to their concrete type.
type HandlerFunc func(sess any, r *Reader) error

// RouteOption tunes a registration.
type RouteOption func(*route)

// RequireEncrypted rejects plain-text bodies for the route.
func RequireEncrypted() RouteOption {
	return func(rt *route) { rt.encrypted = true }
}

type route struct {
	states    []SessionState
	encrypted bool
	fn        HandlerFunc
}

// Registry is the opcode dispatch table. Registration happens once at
// startup; Dispatch is safe for concurrent use afterwards.
type Registry struct {
	routes map[uint16]*route
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[uint16]*route)}
}

// Register binds an opcode to a handler allowed in the given states.
// Registering the same opcode twice is a programming error.
func (reg *Registry) Register(opcode uint16, states []SessionState, fn HandlerFunc, opts ...RouteOption) {
	if _, dup := reg.routes[opcode]; dup {
		panic(fmt.Sprintf("packet: opcode %s registered twice", OpcodeName(opcode)))
	}
	rt := &route{states: slices.Clone(states), fn: fn}
	for _, opt := range opts {
		opt(rt)
	}
	reg.routes[opcode] = rt
}

// Allowed reports whether opcode may be handled in state.
func (reg *Registry) Allowed(opcode uint16, state SessionState) bool {
	rt, ok := reg.routes[opcode]
	return ok && slices.Contains(rt.states, state)
}

// Dispatch runs the gate checks for h and, if they pass, the handler.
// body must already be decrypted when h.Encrypted is set.
func (reg *Registry) Dispatch(sess any, state SessionState, h Header, body []byte) error {
	rt, ok := reg.routes[h.Opcode]
	if !ok {
		return fmt.Errorf("%w %d", ErrUnknownOpcode, h.Opcode)
	}
	if !slices.Contains(rt.states, state) {
		return &StateError{Opcode: h.Opcode, State: state}
	}
	if rt.encrypted && !h.Encrypted {
		return fmt.Errorf("%s: %w", OpcodeName(h.Opcode), ErrEncryptionRequired)
	}
	return rt.fn(sess, NewReader(body))
}
