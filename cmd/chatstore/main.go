package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"github.com/xyzj/toolbox/logger"

	chatstore "github.com/xyzj/chatstore"
	mcpsrv "github.com/xyzj/chatstore/mcp"
	"github.com/xyzj/chatstore/metrics"
	"github.com/xyzj/chatstore/storage"
)

var version = "dev"

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func command() *cli.Command {
	cfg := DefaultConfig()
	return &cli.Command{
		Name:    "chatstore",
		Usage:   "Serve chat persistence tools over MCP stdio",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "backend",
				Category:    "Storage:",
				Sources:     cli.EnvVars("CHATSTORE_BACKEND"),
				Value:       cfg.Backend,
				Destination: &cfg.Backend,
				Usage:       "Store backend: redis, file or memory",
			},
			&cli.StringFlag{
				Name:        "redis-host",
				Category:    "Storage:",
				Sources:     cli.EnvVars("REDIS_HOST"),
				Value:       cfg.Redis.Host,
				Destination: &cfg.Redis.Host,
				Usage:       "Redis host",
			},
			&cli.IntFlag{
				Name:        "redis-port",
				Category:    "Storage:",
				Sources:     cli.EnvVars("REDIS_PORT"),
				Value:       cfg.Redis.Port,
				Destination: &cfg.Redis.Port,
				Usage:       "Redis port",
			},
			&cli.StringFlag{
				Name:        "redis-username",
				Category:    "Storage:",
				Sources:     cli.EnvVars("REDIS_USERNAME"),
				Destination: &cfg.Redis.Username,
				Usage:       "Redis ACL username",
			},
			&cli.StringFlag{
				Name:        "redis-password",
				Category:    "Storage:",
				Sources:     cli.EnvVars("REDIS_PASSWORD"),
				Destination: &cfg.Redis.Password,
				Usage:       "Redis password",
			},
			&cli.IntFlag{
				Name:        "redis-db",
				Category:    "Storage:",
				Sources:     cli.EnvVars("REDIS_DB"),
				Destination: &cfg.Redis.DB,
				Usage:       "Redis logical database",
			},
			&cli.StringFlag{
				Name:        "data-file",
				Category:    "Storage:",
				Sources:     cli.EnvVars("CHATSTORE_DATA_FILE"),
				Value:       cfg.DataFile,
				Destination: &cfg.DataFile,
				Usage:       "BoltDB file used by the file backend",
			},
			&cli.IntFlag{
				Name:        "max-messages",
				Category:    "Chats:",
				Sources:     cli.EnvVars("CHATSTORE_MAX_MESSAGES"),
				Destination: &cfg.MaxMessages,
				Usage:       "Keep only the last N messages of a chat on save, 0 keeps all",
			},
			&cli.StringFlag{
				Name:        "metrics-addr",
				Category:    "Server:",
				Sources:     cli.EnvVars("CHATSTORE_METRICS_ADDR"),
				Destination: &cfg.MetricsAddr,
				Usage:       "Address serving /metrics, disabled when empty",
			},
			&cli.StringFlag{
				Name:        "log-level",
				Category:    "Server:",
				Sources:     cli.EnvVars("CHATSTORE_LOG_LEVEL"),
				Value:       cfg.LogLevel,
				Destination: &cfg.LogLevel,
				Usage:       "Log level: debug, info, warn or error",
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logg := newLogger(cfg.LogLevel)

	kv, err := openClient(ctx, cfg)
	if err != nil {
		return err
	}
	logg.Info("chat store ready", "backend", cfg.Backend)

	store := chatstore.NewStore(kv,
		chatstore.WithLogger(newLogAdapter(logg)),
		chatstore.WithMaxMessages(cfg.MaxMessages),
		chatstore.WithListFailureHook(metrics.ListFailure),
		chatstore.WithOnCleared(func(userID string) {
			logg.Debug("chats cleared", "user", userID)
		}),
	)
	srv := mcpsrv.New(metrics.Wrap(store), mcpsrv.WithVersion(version))

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		httpSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logg.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error("metrics server stopped", "err", err)
			}
		}()
		defer httpSrv.Close()
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ServeStdio() }()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return err
	}
}

func openClient(ctx context.Context, cfg *Config) (storage.Client, error) {
	switch cfg.Backend {
	case backendFile:
		return storage.NewFileClient(cfg.DataFile)
	case backendMemory:
		return storage.NewMemoryClient(), nil
	default:
		rdb, err := storage.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return storage.NewRedisClient(rdb), nil
	}
}

// newLogger writes to stderr; stdout carries the MCP protocol.
func newLogger(level string) *log.Logger {
	logg := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "chatstore",
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		logg.SetLevel(lvl)
	}
	return logg
}

// logAdapter lets the store report through charmbracelet/log. System,
// DefaultWriter and SetLevel fall through to a nil logger.
type logAdapter struct {
	logger.Logger
	l *log.Logger
}

func newLogAdapter(l *log.Logger) logger.Logger {
	return &logAdapter{Logger: logger.NewNilLogger(), l: l}
}

func (a *logAdapter) Debug(msg string)   { a.l.Debug(msg) }
func (a *logAdapter) Info(msg string)    { a.l.Info(msg) }
func (a *logAdapter) Warning(msg string) { a.l.Warn(msg) }
func (a *logAdapter) Error(msg string)   { a.l.Error(msg) }
