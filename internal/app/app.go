// Package app assembles the client from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"moodle-assistant/internal/api"
	"moodle-assistant/internal/cache"
	"moodle-assistant/internal/chat"
	"moodle-assistant/internal/common/config"
	apihttp "moodle-assistant/internal/common/http"
	"moodle-assistant/internal/common/logger"
	"moodle-assistant/internal/common/observability"
	"moodle-assistant/internal/courses"
	"moodle-assistant/internal/session"
	"moodle-assistant/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Store     *storage.Store
	API       *api.Client
	Cache     *cache.Cache
	Session   *session.Controller
	Courses   *courses.Service
	Assistant *chat.Assistant

	zapLog  *zap.Logger
	obs     *observability.Observability
	closers []func() error
}

// Options override pieces New would otherwise build from Config.
type Options struct {
	Navigator session.Navigator
	ZapLogger *zap.Logger
	// Backend replaces the configured storage driver.
	Backend storage.Backend
	// DisableTelemetry skips the OpenTelemetry exporter.
	DisableTelemetry bool
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	zapLog := opts.ZapLogger
	if zapLog == nil {
		zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	}
	log := logger.NewZapAdapter(zapLog)

	a := &App{Config: cfg, Logger: log, zapLog: zapLog}

	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = a.newBackend(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
	}
	a.Store = storage.NewStore(backend, log)

	if !opts.DisableTelemetry {
		obs, err := observability.New(cfg.App.Name)
		if err != nil {
			log.WithError(err).Warn("request telemetry disabled", nil)
		} else {
			a.obs = obs
		}
	}

	transport := apihttp.NewClient(cfg.API.BaseURL, config.GetDuration(cfg.API.Timeout))
	a.API = api.New(transport, a.Store, a.obs, log)

	a.Cache = cache.New(cache.Options{
		StaleTime: config.GetDuration(cfg.Queries.StaleTime),
		Retry:     cfg.Queries.Retry,
	}, log)

	a.Assistant = chat.NewAssistant(a.API, a.Cache, chat.Options{
		Mock:       cfg.Chat.Mock,
		ReplyDelay: config.GetDuration(cfg.Chat.ReplyDelay),
	}, log)
	a.Courses = courses.NewService(a.API, a.Cache, a.Assistant, log)
	a.Session = session.NewController(a.API, a.Store, a.Cache, opts.Navigator, log)

	log.Debug("client initialized", map[string]interface{}{
		"api":            cfg.API.BaseURL,
		"storage_driver": cfg.Storage.Driver,
		"chat_mock":      cfg.Chat.Mock,
	})
	return a, nil
}

func (a *App) newBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case config.StorageDriverMemory:
		return storage.NewMemoryBackend(), nil

	case config.StorageDriverRedis:
		rb := storage.NewRedisBackend(cfg.Redis)
		a.closers = append(a.closers, rb.Close)

		// an unreachable Redis degrades to "no saved session", it does not stop the client
		err := retryWithBackoff(func() error {
			return rb.Ping(ctx)
		}, 3, 200*time.Millisecond, a.Logger, "Redis connection")
		if err != nil {
			a.Logger.WithError(err).Warn("session store unreachable, continuing without persistence", map[string]interface{}{
				"address": cfg.Redis.Address,
			})
		}
		return rb, nil

	case config.StorageDriverFile, "":
		return storage.NewFileBackend(cfg.Path, a.Logger), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ServeMetrics exposes /metrics on the configured address until ctx ends. It
// returns immediately when no address is configured.
func (a *App) ServeMetrics(ctx context.Context) {
	addr := a.Config.Metrics.Address
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.Logger.Info("metrics server listening", map[string]interface{}{"address": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.WithError(err).Error("metrics server failed", nil)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// Close releases the storage client and flushes telemetry and logs.
func (a *App) Close() error {
	if a.Session != nil {
		a.Session.Close()
	}
	a.obs.Shutdown()

	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.zapLog.Sync()
	return errors.Join(errs...)
}
