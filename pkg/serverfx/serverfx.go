// serverfx/serverfx.go
package serverfx

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/funcgate/funcgate-core/pkg/bundlefx"
	"github.com/funcgate/funcgate-core/pkg/config"
	"github.com/funcgate/funcgate-core/pkg/core"
	"github.com/funcgate/funcgate-core/pkg/handler"
	"github.com/funcgate/funcgate-core/pkg/loader"
	"github.com/funcgate/funcgate-core/pkg/middleware/logger"
	"github.com/funcgate/funcgate-core/pkg/registry"
	"github.com/funcgate/funcgate-core/pkg/transport/httpx"
)

// ---------- Options ----------

type Config struct {
	Service       string // for logs only
	ConfigEnv     string // e.g. FUNCGATE_CONFIG
	DefaultConfig string // e.g. "config.toml"
}

type Option func(*Config)

func WithService(s string) Option          { return func(c *Config) { c.Service = s } }
func WithConfigEnv(k string) Option        { return func(c *Config) { c.ConfigEnv = k } }
func WithDefaultConfig(path string) Option { return func(c *Config) { c.DefaultConfig = path } }

func defaultConfig() Config {
	return Config{
		Service:       "funcgate",
		ConfigEnv:     "FUNCGATE_CONFIG",
		DefaultConfig: "config.toml",
	}
}

// Module returns a complete Fx option set; add app-specific fx.Invoke(...)
// alongside.
func Module(opts ...Option) fx.Option {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return fx.Options(
		fx.Supply(cfg),

		// Middleware bundle (auth gate, loggers, metrics)
		bundlefx.Module,

		// Router impl
		fx.Provide(httpx.NewChi),

		// Config snapshot holder
		fx.Provide(provideConfigHolder),

		// Core pipeline
		fx.Provide(registry.New),
		fx.Provide(func() *handler.Catalog { return handler.Default }),
		fx.Provide(loader.New),
		fx.Provide(core.ProvideScheduler),
		fx.Provide(core.NewDispatcher),

		// Router (named "app")
		fx.Provide(fx.Annotate(provideRouter, fx.ResultTags(`name:"app"`))),

		// Lifecycle
		fx.Invoke(registerHooks),
	)
}

func provideConfigHolder(cfg Config, zl *zap.Logger) (*config.Holder, error) {
	path := envOr(cfg.ConfigEnv, cfg.DefaultConfig)
	h, err := config.NewHolder(path)
	if err != nil {
		zl.Error("config load failed", zap.Error(err), zap.String("path", path))
		return nil, err
	}
	return h, nil
}

func provideRouter(
	d *core.Dispatcher,
	h *config.Holder,
	lm *logger.Middleware,
	m http.Handler,
	r httpx.Router,
) http.Handler {
	return core.BuildRouter(d, core.BuildDeps{
		Cfg:     h,
		LogMW:   lm,
		Metrics: m,
		Router:  r,
	})
}

// ---------- Lifecycle (loader + watcher + HTTP server) ----------

type serverDeps struct {
	fx.In
	Logger *zap.Logger
	Events *logger.Events
	Holder *config.Holder
	Loader *loader.Loader
	App    http.Handler `name:"app"`
}

func registerHooks(lc fx.Lifecycle, cfg Config, d serverDeps) {
	snap := d.Holder.Current()
	srv := &http.Server{
		Addr:         snap.ListenAddr(),
		Handler:      d.App,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// Load every module before accepting traffic; per-module
			// failures are reported, never fatal.
			rep := d.Loader.LoadAll()
			d.Events.System("SERVER_STARTED",
				zap.String("service", cfg.Service),
				zap.String("addr", srv.Addr),
				zap.Bool("hotReload", snap.HotReload),
				zap.Int("endpointsAdded", rep.EndpointsAdded),
			)

			if snap.HotReload {
				w := loader.NewWatcher(d.Loader)
				go func() {
					if err := w.Run(watchCtx); err != nil {
						d.Logger.Error("watcher failed", zap.Error(err))
					}
				}()
			}

			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					d.Logger.Fatal("server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Events.System("SERVER_SHUTDOWN", zap.String("service", cfg.Service))
			watchCancel()
			return srv.Shutdown(ctx)
		},
	})
}

// ---------- tiny helpers ----------

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
