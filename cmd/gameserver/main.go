// gameserver runs the game session server.
//
// Usage:
//
//	gameserver --config config/server.toml [--standalone] [--log-level debug]
//
// SIGHUP reloads the runtime part of the config (maintenance, tick rate,
// token settings, special users). SIGINT/SIGTERM shut down.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Capeling/globed2-joeyy/internal/config"
	"github.com/Capeling/globed2-joeyy/internal/core/event"
	"github.com/Capeling/globed2-joeyy/internal/cryptobox"
	"github.com/Capeling/globed2-joeyy/internal/handler"
	"github.com/Capeling/globed2-joeyy/internal/logging"
	"github.com/Capeling/globed2-joeyy/internal/metrics"
	"github.com/Capeling/globed2-joeyy/internal/net"
	"github.com/Capeling/globed2-joeyy/internal/net/packet"
	"github.com/Capeling/globed2-joeyy/internal/world"
)

var (
	configPath string
	standalone bool
	logLevel   string

	rootCmd = &cobra.Command{
		Use:           "gameserver",
		Short:         "Runs the game session server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
)

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config/server.toml", "path to the TOML config file")
	rootCmd.Flags().BoolVar(&standalone, "standalone", false, "trust client names and skip token validation")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override [logging] level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if !cmd.Flags().Changed("config") && errors.Is(err, os.ErrNotExist) {
		// no config shipped: run on defaults
		return config.Defaults(), nil
	}
	return nil, err
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if standalone {
		cfg.Game.Standalone = true
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	store, err := config.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("config store: %w", err)
	}
	keys, err := cryptobox.GenerateKeyPair()
	if err != nil {
		return err
	}

	bus := event.NewBus()
	state := world.NewState()

	deps := &handler.Deps{
		Config:     store,
		Log:        log,
		World:      state,
		Keys:       keys,
		Bus:        bus,
		Standalone: cfg.Game.Standalone,
	}
	if cfg.RateLimit.Enabled {
		deps.LoginLimiter = net.NewIPLimiter(cfg.RateLimit.LoginAttemptsPerMinute)
	}

	reg := packet.NewRegistry()
	handler.RegisterAll(reg, deps)

	pps := 0
	if cfg.RateLimit.Enabled {
		pps = cfg.RateLimit.PacketsPerSecond
	}
	srv := net.NewServer(net.ServerOptions{
		BindAddress:      cfg.Network.BindAddress,
		ReadTimeout:      cfg.Network.ReadTimeout,
		KeepaliveTimeout: cfg.Network.KeepaliveTimeout,
		Session: net.SessionOptions{
			OutQueueSize:     cfg.Network.OutQueueSize,
			WriteTimeout:     cfg.Network.WriteTimeout,
			PacketsPerSecond: pps,
		},
	}, reg, log, bus)
	srv.OnClose(handler.OnSessionClosed(deps))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = startMetrics(cfg.Metrics.Address, bus, state, log)
	}

	go watchReload(ctx, store, log)

	log.Info("game server starting",
		zap.String("name", cfg.Server.Name),
		zap.Bool("standalone", cfg.Game.Standalone),
		zap.Uint16("protocol", packet.ProtocolVersion),
		zap.Uint32("tick_rate", store.TickRate()),
		zap.Int("special_users", len(store.Snapshot().SpecialUsers)))
	if cfg.Game.Standalone {
		log.Warn("standalone mode: client names are trusted without token validation")
	} else if cfg.Auth.PlaceholderSecret() {
		log.Warn("auth.secret_key not set: using a generated secret, tokens from the central server will not validate")
	}

	err = srv.ListenAndServe(ctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := metricsSrv.Shutdown(shutdownCtx); serr != nil {
			log.Warn("metrics server shutdown", zap.Error(serr))
		}
	}
	return err
}

func startMetrics(addr string, bus *event.Bus, state *world.State, log *zap.Logger) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.New(reg, bus, func() float64 { return float64(state.PlayerCount()) })

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", addr))
	return srv
}

func watchReload(ctx context.Context, store *config.Store, log *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := store.Reload(configPath); err != nil {
				log.Error("config reload failed", zap.Error(err))
				continue
			}
			log.Info("config reloaded",
				zap.Bool("maintenance", store.Maintenance()),
				zap.Uint32("tick_rate", store.TickRate()))
		}
	}
}
