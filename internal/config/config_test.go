package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capeling/globed2-joeyy/internal/data"
)

const sampleConfig = `
[server]
name = "test-node"

[network]
bind_address = "127.0.0.1:0"
read_timeout = "15s"

[game]
maintenance = true
tick_rate = 60

[auth]
secret_key = "shared-secret"
token_expiry = "5m"
special_users_file = "special_users.yaml"
`

const sampleSpecialUsers = `
special_users:
  - account_id: 7
    name: "Mod"
    color: "#00ff00"
`

func writeFiles(t *testing.T, cfg, users string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.toml"), []byte(cfg), 0o644))
	if users != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "special_users.yaml"), []byte(users), 0o644))
	}
	return filepath.Join(dir, "server.toml")
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(30), cfg.Game.TickRate)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenExpiry)
	assert.Equal(t, 60*time.Second, cfg.Auth.ChallengeExpiry)
	assert.Equal(t, 90*time.Second, cfg.Network.KeepaliveTimeout)
	assert.True(t, strings.HasPrefix(cfg.Auth.SecretKey, "Change-Me-Please-Insecure-"))
	assert.True(t, cfg.Auth.PlaceholderSecret())
	assert.Equal(t, cfg.Auth.SecretKey, Defaults().Auth.SecretKey, "generated once per process")
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFiles(t, sampleConfig, sampleSpecialUsers)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-node", cfg.Server.Name)
	assert.Equal(t, 15*time.Second, cfg.Network.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Network.WriteTimeout)
	assert.True(t, cfg.Game.Maintenance)
	assert.Equal(t, uint32(60), cfg.Game.TickRate)
	assert.Equal(t, "shared-secret", cfg.Auth.SecretKey)
	assert.Equal(t, 5*time.Minute, cfg.Auth.TokenExpiry)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "special_users.yaml"), cfg.Auth.SpecialUsersFile)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	_, err = Load(writeFiles(t, "[game\n", ""))
	require.Error(t, err)

	_, err = Load(writeFiles(t, "[game]\ntick_rate = 0\n", ""))
	require.ErrorContains(t, err, "tick_rate")

	_, err = Load(writeFiles(t, "[network]\nkeepalive_timeout = \"-1s\"\n", ""))
	require.ErrorContains(t, err, "keepalive_timeout")
}

func TestStoreFromConfig(t *testing.T) {
	cfg, err := Load(writeFiles(t, sampleConfig, sampleSpecialUsers))
	require.NoError(t, err)

	s, err := NewStore(cfg)
	require.NoError(t, err)
	assert.True(t, s.Maintenance())
	assert.Equal(t, uint32(60), s.TickRate())

	su, ok := s.SpecialUser(7)
	require.True(t, ok)
	assert.Equal(t, "Mod", su.Name)
	_, ok = s.SpecialUser(8)
	assert.False(t, ok)

	secret, expiry := s.TokenSettings()
	assert.Equal(t, "shared-secret", secret)
	assert.Equal(t, 5*time.Minute, expiry)
}

func TestStoreMissingSpecialUsersFile(t *testing.T) {
	cfg, err := Load(writeFiles(t, sampleConfig, ""))
	require.NoError(t, err)
	_, err = NewStore(cfg)
	require.Error(t, err)
}

func TestStoreReload(t *testing.T) {
	path := writeFiles(t, sampleConfig, sampleSpecialUsers)
	cfg, err := Load(path)
	require.NoError(t, err)
	s, err := NewStore(cfg)
	require.NoError(t, err)

	before := s.Snapshot()
	require.NoError(t, s.Reload(path))
	assert.Equal(t, before, s.Snapshot(), "identical reload changes nothing")

	updated := strings.Replace(sampleConfig, "maintenance = true", "maintenance = false", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, s.Reload(path))
	assert.False(t, s.Maintenance())

	require.NoError(t, os.WriteFile(path, []byte("[game\n"), 0o644))
	require.Error(t, s.Reload(path))
	assert.False(t, s.Maintenance(), "failed reload leaves store untouched")
	assert.Equal(t, uint32(60), s.TickRate())
}

func TestStoreReloadKeepsGeneratedSecret(t *testing.T) {
	path := writeFiles(t, "[game]\ntick_rate = 30\n", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Auth.PlaceholderSecret())
	s, err := NewStore(cfg)
	require.NoError(t, err)

	secret, expiry := s.TokenSettings()
	before := s.Snapshot()
	for range 2 {
		require.NoError(t, s.Reload(path))
		gotSecret, gotExpiry := s.TokenSettings()
		assert.Equal(t, secret, gotSecret)
		assert.Equal(t, expiry, gotExpiry)
	}
	assert.Equal(t, before, s.Snapshot())

	loaded, err := Load(writeFiles(t, sampleConfig, sampleSpecialUsers))
	require.NoError(t, err)
	assert.False(t, loaded.Auth.PlaceholderSecret())
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s, err := NewStore(Defaults())
	require.NoError(t, err)

	sh := s.Snapshot()
	sh.SpecialUsers[1] = data.SpecialUser{AccountID: 1, Name: "ghost"}
	_, ok := s.SpecialUser(1)
	assert.False(t, ok)

	sh.Maintenance = true
	assert.False(t, s.Maintenance())
	s.Replace(sh)
	assert.True(t, s.Maintenance())
	_, ok = s.SpecialUser(1)
	assert.True(t, ok)
}
