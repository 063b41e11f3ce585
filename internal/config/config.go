package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Network   NetworkConfig   `toml:"network"`
	Game      GameConfig      `toml:"game"`
	Auth      AuthConfig      `toml:"auth"`
	Logging   LoggingConfig   `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

type ServerConfig struct {
	Name string `toml:"name"`
}

type NetworkConfig struct {
	BindAddress      string        `toml:"bind_address"`
	ReadTimeout      time.Duration `toml:"read_timeout"`      // idle limit between two client frames
	WriteTimeout     time.Duration `toml:"write_timeout"`
	KeepaliveTimeout time.Duration `toml:"keepalive_timeout"` // authenticated sessions without a keepalive for this long are dropped, 0 = off
	OutQueueSize     int           `toml:"out_queue_size"`    // queued outbound frames per session
}

// GameConfig holds the values sessions read while running. Everything but
// Standalone is re-read on reload.
type GameConfig struct {
	Standalone  bool   `toml:"standalone"` // trust client names, no token checks
	Maintenance bool   `toml:"maintenance"`
	TickRate    uint32 `toml:"tick_rate"` // simulation ticks per second sent on login
}

type AuthConfig struct {
	SecretKey        string        `toml:"secret_key"` // shared with the central server, signs login tokens
	TokenExpiry      time.Duration `toml:"token_expiry"`
	ChallengeExpiry  time.Duration `toml:"challenge_expiry"`
	SpecialUsersFile string        `toml:"special_users_file"` // YAML, relative to the config file
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type RateLimitConfig struct {
	Enabled                bool `toml:"enabled"`
	LoginAttemptsPerMinute int  `toml:"login_attempts_per_minute"` // per remote IP
	PacketsPerSecond       int  `toml:"packets_per_second"`        // per session
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// Load reads a TOML config file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if f := cfg.Auth.SpecialUsersFile; f != "" && !filepath.IsAbs(f) {
		cfg.Auth.SpecialUsersFile = filepath.Join(filepath.Dir(path), f)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Network.BindAddress == "" {
		errs = append(errs, errors.New("network.bind_address is empty"))
	}
	if c.Network.OutQueueSize <= 0 {
		errs = append(errs, errors.New("network.out_queue_size must be positive"))
	}
	if c.Network.KeepaliveTimeout < 0 {
		errs = append(errs, errors.New("network.keepalive_timeout must not be negative"))
	}
	if c.Game.TickRate == 0 {
		errs = append(errs, errors.New("game.tick_rate must be positive"))
	}
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("auth.secret_key is empty"))
	}
	if c.Auth.TokenExpiry <= 0 {
		errs = append(errs, errors.New("auth.token_expiry must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.PacketsPerSecond <= 0 || c.RateLimit.LoginAttemptsPerMinute <= 0) {
		errs = append(errs, errors.New("rate_limit values must be positive when enabled"))
	}
	return errors.Join(errs...)
}

// Defaults returns a config usable for a local standalone server.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "globed-game-server",
		},
		Network: NetworkConfig{
			BindAddress:  "0.0.0.0:4202",
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     10 * time.Second,
			KeepaliveTimeout: 90 * time.Second,
			OutQueueSize:     256,
		},
		Game: GameConfig{
			Standalone:  false,
			Maintenance: false,
			TickRate:    30,
		},
		Auth: AuthConfig{
			SecretKey:       insecureSecret(),
			TokenExpiry:     30 * time.Minute,
			ChallengeExpiry: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RateLimit: RateLimitConfig{
			Enabled:                true,
			LoginAttemptsPerMinute: 10,
			PacketsPerSecond:       120,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9102",
		},
	}
}

const (
	secretAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	placeholderPrefix = "Change-Me-Please-Insecure-"
)

// insecureSecret is a random placeholder so a server started without a
// configured secret never signs with a well-known key. It is generated once
// per process; every Defaults and every reload sees the same value.
var insecureSecret = sync.OnceValue(func() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("config: read random secret: %v", err))
	}
	for i, b := range buf {
		buf[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}
	return placeholderPrefix + string(buf)
})

// PlaceholderSecret reports whether the secret key is the generated
// placeholder, i.e. the config file did not set one.
func (a AuthConfig) PlaceholderSecret() bool {
	return strings.HasPrefix(a.SecretKey, placeholderPrefix)
}
