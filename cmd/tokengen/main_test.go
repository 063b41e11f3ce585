package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capeling/globed2-joeyy/internal/config"
	"github.com/Capeling/globed2-joeyy/internal/token"
)

func TestAccountArg(t *testing.T) {
	id, err := accountArg(1234)
	require.NoError(t, err)
	assert.Equal(t, int32(1234), id)

	id, err = accountArg(math.MaxInt32)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), id)

	for _, v := range []int64{0, -1, math.MaxInt32 + 1, 4294967297} {
		_, err := accountArg(v)
		assert.Error(t, err, "account %d", v)
	}
}

func TestIssue(t *testing.T) {
	now := time.Now()
	auth := config.AuthConfig{SecretKey: "shared-secret", TokenExpiry: time.Minute}

	tok, err := issue(auth, 7, "alice", now)
	require.NoError(t, err)
	name, err := token.Validate(7, tok, now, "shared-secret", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	_, err = issue(config.Defaults().Auth, 7, "alice", now)
	require.ErrorContains(t, err, "secret_key")
}
