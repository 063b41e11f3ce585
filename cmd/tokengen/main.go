// tokengen issues a login token the way the central server does, for local
// testing against a game server that shares its secret key.
//
// Usage:
//
//	go run ./cmd/tokengen/ -account 1234 -name player [-config config/server.toml]
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/Capeling/globed2-joeyy/internal/config"
	"github.com/Capeling/globed2-joeyy/internal/token"
)

func main() {
	accountID := flag.Int64("account", 0, "account id the token is issued for")
	name := flag.String("name", "", "player name carried by the token")
	cfgPath := flag.String("config", "config/server.toml", "server config holding [auth] secret_key")
	flag.Parse()

	id, err := accountArg(*accountID)
	if err != nil || *name == "" {
		fmt.Fprintln(os.Stderr, "error: -account (1..2147483647) and -name are required")
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	tok, err := issue(cfg.Auth, id, *name, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}

// accountArg narrows the -account flag to an account id.
func accountArg(v int64) (int32, error) {
	if v <= 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("account id %d out of range", v)
	}
	return int32(v), nil
}

// issue signs a token with the configured secret. A generated placeholder
// secret is refused: no running server shares it.
func issue(auth config.AuthConfig, accountID int32, name string, now time.Time) (string, error) {
	if auth.PlaceholderSecret() {
		return "", errors.New("config sets no auth.secret_key; tokens would not validate on any server")
	}
	return token.Issue(accountID, name, now, auth.SecretKey, auth.TokenExpiry)
}
