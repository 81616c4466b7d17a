package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"https-redirect/internal/client"
	"https-redirect/internal/config"
	"https-redirect/internal/diag"
	"https-redirect/internal/engine"
	"https-redirect/internal/handler"
	"https-redirect/internal/metrics"
	"https-redirect/internal/middleware"
	"https-redirect/internal/reload"
	"https-redirect/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// adminEcho is the Echo instance bound to server.admin_addr. It is a distinct
// type so fx can tell it apart from the traffic instance.
type adminEcho struct {
	*echo.Echo
}

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("https-redirect"),
		kong.Description("Redirects plain HTTP requests to HTTPS and forwards exempt traffic to a backend."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newStore,
			newSink,
			newEngine,
			client.NewBackendClient,
			service.NewForwardService,
			handler.NewRedirectHandler,
			handler.NewHealthHandler,
			reload.NewWatcher,
			newEcho,
			newAdminEcho,
		),
		fx.Invoke(
			handler.RegisterRoutes,
			registerAdminRoutes,
			warnConfigPermissions,
			startDiagnostics,
			startWatcher,
			startServers,
		),
	).Run()
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var w io.Writer = os.Stdout
	if cfg.Log.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
		lc.Append(fx.StopHook(file.Close))
		w = io.MultiWriter(os.Stdout, file)
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h)
}

func newStore(cfg *config.Config) *engine.Store {
	return engine.NewStore(cfg.ToEngine())
}

func newSink(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *diag.Sink {
	return diag.NewSink(logger, m, cfg.Log.EventBuffer)
}

func newEngine(sink *diag.Sink) *engine.Engine {
	return engine.New(sink)
}

func configureServer(e *echo.Echo) {
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout stays disabled so long pass-through responses can stream;
	// the backend client timeout bounds them instead.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, store *engine.Store) *echo.Echo {
	e := echo.New()
	configureServer(e)
	// Rate limiting and logging key on the TCP peer, never on client-supplied headers.
	e.IPExtractor = echo.ExtractIPDirect()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.Snapshot(store))
	e.Use(middleware.MetricsMiddleware(m, store))
	e.Use(middleware.SecurityHeaders(store))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))

	if cfg.Server.RateLimit.Enabled {
		limiter := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond))
		e.Use(echomw.RateLimiter(limiter))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func newAdminEcho() *adminEcho {
	e := echo.New()
	configureServer(e)
	e.Use(echomw.Recover())
	return &adminEcho{Echo: e}
}

func registerAdminRoutes(admin *adminEcho, health *handler.HealthHandler, cfg *config.Config, m *metrics.Metrics) {
	handler.RegisterAdminRoutes(admin.Echo, health, cfg, m)
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startDiagnostics(lc fx.Lifecycle, sink *diag.Sink) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			sink.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			sink.Stop()
			return nil
		},
	})
}

func startWatcher(lc fx.Lifecycle, w *reload.Watcher) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return w.Start()
		},
		OnStop: func(_ context.Context) error {
			w.Stop()
			return nil
		},
	})
}

func startServers(lc fx.Lifecycle, e *echo.Echo, admin *adminEcho, cfg *config.Config, logger *slog.Logger) {
	var listeners []net.Listener

	serve := func(srv *http.Server, ln net.Listener, role string) {
		logger.Info("starting server", "addr", ln.Addr().String(), "role", role)
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "err", err, "role", role)
			}
		}()
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			for _, addr := range cfg.Server.Listeners {
				ln, err := net.Listen("tcp", addr)
				if err != nil {
					for _, l := range listeners {
						_ = l.Close()
					}
					return fmt.Errorf("bind %s: %w", addr, err)
				}
				listeners = append(listeners, ln)
			}
			adminLn, err := net.Listen("tcp", cfg.Server.AdminAddr)
			if err != nil {
				for _, l := range listeners {
					_ = l.Close()
				}
				return fmt.Errorf("bind %s: %w", cfg.Server.AdminAddr, err)
			}

			for _, ln := range listeners {
				serve(e.Server, ln, "traffic")
			}
			serve(admin.Server, adminLn, "admin")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down servers")
			return errors.Join(e.Shutdown(ctx), admin.Shutdown(ctx))
		},
	})
}
