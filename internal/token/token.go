// Package token issues and validates the login tokens handed out by the
// central server. Tokens are HS256 JWTs signed with the secret the central
// server shares with game servers, so a game server can check them without a
// network round trip. Validation is a pure function of the token, the secret,
// the clock and the configured expiry.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind classifies a validation failure.
type Kind int

const (
	Malformed Kind = iota + 1
	SignatureInvalid
	Expired
	AccountMismatch
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed token"
	case SignatureInvalid:
		return "invalid token signature"
	case Expired:
		return "token expired"
	case AccountMismatch:
		return "token was issued for a different account"
	}
	return "unknown token error"
}

// Error is returned by Validate. Its message is short enough to show to players.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Kind.String() }

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, token.ErrExpired) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrMalformed        = &Error{Kind: Malformed}
	ErrSignatureInvalid = &Error{Kind: SignatureInvalid}
	ErrExpired          = &Error{Kind: Expired}
	ErrAccountMismatch  = &Error{Kind: AccountMismatch}
)

// Claims is the token payload.
type Claims struct {
	AccountID int32  `json:"account_id"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

var validMethods = []string{jwt.SigningMethodHS256.Alg()}

// Issue signs a token for accountID that stays valid for expiry from now.
func Issue(accountID int32, name string, now time.Time, secret string, expiry time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("issue token: empty secret")
	}
	claims := &Claims{
		AccountID: accountID,
		Name:      name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(int(accountID)),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks tok for accountID and returns the display name it vouches for.
// A token is expired once now passes its own exp claim or iat + expiry,
// whichever comes first. The returned error is always a *Error.
func Validate(accountID int32, tok string, now time.Time, secret string, expiry time.Duration) (string, error) {
	if tok == "" {
		return "", &Error{Kind: Malformed, Err: errors.New("empty token")}
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tok, claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods(validMethods),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", classify(err)
	}
	if claims.IssuedAt == nil {
		return "", &Error{Kind: Malformed, Err: errors.New("missing iat claim")}
	}
	if now.After(claims.IssuedAt.Add(expiry)) {
		return "", &Error{Kind: Expired, Err: fmt.Errorf("issued at %s, expiry %s", claims.IssuedAt.Time, expiry)}
	}
	if claims.AccountID != accountID {
		return "", &Error{Kind: AccountMismatch, Err: fmt.Errorf("token account %d, claimed %d", claims.AccountID, accountID)}
	}
	if claims.Name == "" {
		return "", &Error{Kind: Malformed, Err: errors.New("missing name claim")}
	}
	return claims.Name, nil
}

func classify(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &Error{Kind: SignatureInvalid, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &Error{Kind: Expired, Err: err}
	default:
		return &Error{Kind: Malformed, Err: err}
	}
}
