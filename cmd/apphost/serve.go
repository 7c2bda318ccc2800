package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hollaugo/apphost"
	"github.com/hollaugo/apphost/examples/taskboard"
	"github.com/hollaugo/apphost/internal/adapters/memory"
	"github.com/hollaugo/apphost/internal/adapters/redis"
	"github.com/hollaugo/apphost/internal/config"
	"github.com/hollaugo/apphost/internal/logging"
	"github.com/hollaugo/apphost/pkg/observability"
	"github.com/hollaugo/apphost/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the engine in server mode, exposing the protocol endpoint on /mcp along with /healthz, /metrics, and widget previews on /preview.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Addr = addr
		}

		logger := logging.New(parseLevel(cfg.LogLevel))
		if cfg.LogFormat == "json" {
			logger = logging.NewJSON(parseLevel(cfg.LogLevel))
		}

		var store ports.EntityStore
		if cfg.Redis.Addr != "" {
			store = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			logger.Info("using redis entity store", "addr", cfg.Redis.Addr)
		} else {
			store = memory.New()
			logger.Warn("using in-memory entity store; data is lost on restart")
		}

		reg, err := taskboard.New(store)
		if err != nil {
			return fmt.Errorf("build registry: %w", err)
		}

		engine := apphost.New(reg,
			apphost.WithLogger(logger),
			apphost.WithMetrics(observability.New()),
			apphost.WithServiceName(cfg.ServiceName),
			apphost.WithWidgetDomain(cfg.WidgetDomain),
			apphost.WithAllowedOrigins(cfg.ConnectOrigins, cfg.ResourceOrigins),
			apphost.WithSessionTTL(cfg.SessionTTL.Std()),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := engine.Serve(ctx, cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides config)")
}
