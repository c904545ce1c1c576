package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/chatd/internal/api"
	"github.com/matheus3301/chatd/internal/auth"
	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/chat"
	"github.com/matheus3301/chatd/internal/config"
	"github.com/matheus3301/chatd/internal/lock"
	"github.com/matheus3301/chatd/internal/logging"
	"github.com/matheus3301/chatd/internal/media"
	"github.com/matheus3301/chatd/internal/metrics"
	"github.com/matheus3301/chatd/internal/paths"
	"github.com/matheus3301/chatd/internal/realtime"
	"github.com/matheus3301/chatd/internal/status"
	"github.com/matheus3301/chatd/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	Config *config.Config
	Debug  bool
	Logger *zap.Logger // optional override for testing; nil = log file under the data dir
}

// Module returns the fx module for the server, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("server",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideTokens,
			provideUploader,
			provideRedis,
			provideRateLimiter,
			provideRegistry,
			provideHub,
			provideChat,
			provideRecorder,
			provideAPI,
			NewHTTPServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("server: no config")
	}
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}
	return p.Config, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	return logging.New(paths.LogPath(cfg.DataDir), "chatd", p.Debug)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	if err := paths.EnsureDir(cfg.DataDir); err != nil {
		return nil, err
	}
	logger.Info("acquiring data dir lock", zap.String("data_dir", cfg.DataDir))
	l, err := lock.Acquire(cfg.DataDir, cfg.Listen)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

// provideStore depends on the lock so no second process opens the database.
func provideStore(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (store.Store, error) {
	dbPath := paths.DBPath(cfg.DataDir)
	s, result, err := store.OpenEngine(context.Background(), cfg.Store.Driver, dbPath, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("engine", s.Engine()))
	return s, nil
}

func provideTokens(cfg *config.Config, logger *zap.Logger) (*auth.Tokens, error) {
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// Validate rejects this in production.
		logger.Warn("no jwt secret configured, tokens will not survive a restart")
		secret = uuid.NewString() + uuid.NewString()
	}
	return auth.NewTokens(secret, cfg.Auth.TokenTTL.Duration)
}

func provideUploader(cfg *config.Config) (*media.DiskUploader, error) {
	return media.NewDiskUploader(paths.UploadDir(cfg.DataDir), cfg.PublicURL)
}

// provideRedis returns nil when no redis is configured.
func provideRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.RateLimit.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func provideRateLimiter(client *redis.Client, logger *zap.Logger) *api.RateLimiter {
	return api.NewRateLimiter(client, logger)
}

func provideRegistry() *realtime.Registry {
	return realtime.NewRegistry()
}

func provideHub(reg *realtime.Registry, b *bus.Bus, logger *zap.Logger) *realtime.Hub {
	return realtime.NewHub(reg, b, logger)
}

func provideChat(s store.Store, hub *realtime.Hub, up *media.DiskUploader, tokens *auth.Tokens, b *bus.Bus, logger *zap.Logger) *chat.Service {
	return chat.NewService(s, hub, up, tokens, b, logger)
}

func provideRecorder(b *bus.Bus, logger *zap.Logger) *metrics.Recorder {
	return metrics.NewRecorder(b, logger)
}

func provideAPI(
	cfg *config.Config,
	svc *chat.Service,
	hub *realtime.Hub,
	tokens *auth.Tokens,
	s store.Store,
	machine *status.Machine,
	limiter *api.RateLimiter,
	up *media.DiskUploader,
	logger *zap.Logger,
) *api.Server {
	opts := realtime.DefaultOptions()
	opts.HandshakeTimeout = cfg.Realtime.HandshakeTimeout.Duration
	opts.PongWait = cfg.Realtime.PongWait.Duration
	opts.PingPeriod = cfg.Realtime.PingPeriod.Duration
	opts.WriteWait = cfg.Realtime.WriteWait.Duration
	opts.SendBuffer = cfg.Realtime.SendBuffer

	ws := realtime.NewHandshake(hub, tokens, s, opts, originChecker(cfg.AllowedOrigins), machine.Accepting, logger)

	return api.NewServer(api.Options{
		Chat:           svc,
		Hub:            hub,
		WS:             ws,
		Tokens:         tokens,
		Users:          s,
		Status:         machine,
		Limiter:        limiter,
		AuthPerMinute:  cfg.RateLimit.AuthPerMinute,
		SendPerMinute:  cfg.RateLimit.SendPerMinute,
		UploadDir:      up.Dir(),
		AllowedOrigins: cfg.AllowedOrigins,
		Engine:         s.Engine(),
		Logger:         logger,
	})
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browsers from the allow-list.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *HTTPServer,
	lk *lock.Lock,
	s store.Store,
	hub *realtime.Hub,
	recorder *metrics.Recorder,
	rdb *redis.Client,
	machine *status.Machine,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Start the recorder first so it sees every event.
			recorder.Start(context.Background())

			if rdb != nil {
				if err := rdb.Ping(ctx).Err(); err != nil {
					logger.Warn("redis unreachable, rate limiting fails open", zap.Error(err))
				}
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
					_ = machine.Transition(status.Failed)
				}
			}()

			return machine.Transition(status.Serving)
		},
		OnStop: func(ctx context.Context) error {
			_ = machine.Transition(status.Draining)
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
			hub.Close()
			recorder.Stop()
			if rdb != nil {
				_ = rdb.Close()
			}
			if err := s.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			_ = machine.Transition(status.Stopped)
			logger.Info("server stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
