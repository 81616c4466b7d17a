// Package reload re-reads the configuration file on change or SIGHUP and
// swaps the resulting engine settings into the shared store.
package reload

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"https-redirect/internal/config"
	"https-redirect/internal/engine"
	"https-redirect/internal/metrics"
)

// DefaultDebounce coalesces the burst of events editors emit for one save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads engine settings from the config file. Only the engine
// section takes effect at runtime; listener, backend and log settings are
// read once at startup.
type Watcher struct {
	cli      config.CLI
	path     string
	watch    bool
	debounce time.Duration
	store    *engine.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu   sync.Mutex // serializes Reload
	quit chan struct{}
	done chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a Watcher for the file cfg was loaded from. CLI
// overrides in cli are re-applied on every reload.
// The metrics parameter is optional; pass nil to disable reload counters.
func NewWatcher(cli *config.CLI, cfg *config.Config, store *engine.Store, logger *slog.Logger, m *metrics.Metrics) *Watcher {
	path := cfg.FilePath()
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	c := *cli
	c.Config = path
	return &Watcher{
		cli:      c,
		path:     path,
		watch:    cfg.Reload.Watch,
		debounce: DefaultDebounce,
		store:    store,
		logger:   logger.With("component", "reload"),
		metrics:  m,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Reload loads the config file and, if it is valid, publishes its engine
// settings. On failure the current settings stay in effect.
func (w *Watcher) Reload() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cfg, err := config.Load(&w.cli)
	if err != nil {
		w.count("failure")
		w.logger.Error("config reload failed; keeping current settings",
			"path", w.path,
			"error", err,
		)
		return fmt.Errorf("reload: %w", err)
	}

	ec := cfg.ToEngine()
	w.store.Swap(ec)
	w.count("success")
	w.logger.Info("config reloaded",
		"path", w.path,
		"redirect_enabled", ec.RedirectEnabled,
		"redirect_status_code", ec.RedirectStatusCode,
		"exemption_patterns", len(ec.ExemptionPatterns),
	)
	return nil
}

func (w *Watcher) count(result string) {
	if w.metrics != nil {
		w.metrics.ConfigReloadsTotal.WithLabelValues(result).Inc()
	}
}

// Start begins listening for SIGHUP and, when reload.watch is set, for
// writes to the config file. Calling it more than once is a no-op.
func (w *Watcher) Start() error {
	var err error
	w.startOnce.Do(func() {
		var fw *fsnotify.Watcher
		if w.watch {
			fw, err = fsnotify.NewWatcher()
			if err != nil {
				err = fmt.Errorf("create file watcher: %w", err)
				close(w.done)
				return
			}
			// Watch the directory so atomic rename-into-place saves are seen.
			if err = fw.Add(filepath.Dir(w.path)); err != nil {
				_ = fw.Close()
				err = fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
				close(w.done)
				return
			}
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGHUP)

		w.logger.Info("config reload enabled",
			"path", w.path,
			"watch", w.watch,
		)
		go w.run(fw, sigCh)
	})
	return err
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	w.startOnce.Do(func() { close(w.done) })
	<-w.done
}

func (w *Watcher) run(fw *fsnotify.Watcher, sigCh chan os.Signal) {
	defer close(w.done)
	defer signal.Stop(sigCh)

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if fw != nil {
		defer func() { _ = fw.Close() }()
		events = fw.Events
		errs = fw.Errors
	}

	var fire <-chan time.Time
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if w.relevant(ev) {
				fire = time.After(w.debounce)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("config watch error", "error", err)
		case <-sigCh:
			w.logger.Info("SIGHUP received")
			fire = nil
			_ = w.Reload()
		case <-fire:
			fire = nil
			_ = w.Reload()
		case <-w.quit:
			return
		}
	}
}

// relevant reports whether ev changed the config file's contents.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
