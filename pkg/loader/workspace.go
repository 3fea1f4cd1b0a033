package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/papapumpkin/manifest/internal/logging"
	"github.com/papapumpkin/manifest/internal/telemetry"
	"github.com/papapumpkin/manifest/pkg/catalog"
	"github.com/papapumpkin/manifest/pkg/codec"
	"github.com/papapumpkin/manifest/pkg/config"
	"github.com/papapumpkin/manifest/pkg/registry"
)

// ErrCatalogDisabled is returned by Snapshot when the workspace has no
// catalog.
var ErrCatalogDisabled = errors.New("catalog disabled")

// Workspace is a loaded manifest directory together with the services the
// configuration asked for: telemetry, a catalog and a watcher.
type Workspace struct {
	Config   config.Config
	Registry *registry.Registry
	Logger   *log.Logger
	Result   Result

	emitter *telemetry.Emitter
	catalog *catalog.Catalog
	watcher *Watcher

	restoreRegistry registry.Option

	changes   chan Change
	closing   chan struct{}
	forwarded chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// OpenOption configures Open.
type OpenOption func(*openOptions)

type openOptions struct {
	logOutput io.Writer
	registry  *registry.Registry
}

// WithLogOutput sends workspace logs to w instead of stderr.
func WithLogOutput(w io.Writer) OpenOption {
	return func(o *openOptions) {
		o.logOutput = w
	}
}

// WithRegistry loads into r instead of a new registry, for example
// registry.Global(). The workspace logger and telemetry are attached to r
// until Close.
func WithRegistry(r *registry.Registry) OpenOption {
	return func(o *openOptions) {
		o.registry = r
	}
}

// Open loads cfg.Dir and starts the services cfg enables. On error every
// service already started is closed again.
func Open(ctx context.Context, cfg config.Config, opts ...OpenOption) (*Workspace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := openOptions{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	logger, err := logging.New(cfg.LogLevel, o.logOutput)
	if err != nil {
		return nil, err
	}
	ws := &Workspace{
		Config:    cfg,
		Logger:    logger,
		closing:   make(chan struct{}),
		forwarded: make(chan struct{}),
	}

	if cfg.EventsPath != "" {
		em, err := telemetry.NewEmitter(cfg.EventsPath)
		if err != nil {
			return nil, err
		}
		ws.emitter = em
	}

	observe := []registry.Option{registry.WithLogger(logger), registry.WithEmitter(ws.emitter)}
	ws.Registry = o.registry
	if ws.Registry == nil {
		ws.Registry = registry.New(observe...)
	} else {
		ws.restoreRegistry = ws.Registry.Observe(observe...)
	}

	loadOpts := []Option{
		WithPatterns(cfg.Patterns...),
		WithRecursive(cfg.Recursive),
		WithWorkers(cfg.Workers),
		WithDebounce(cfg.Watch.Debounce),
		WithStrictChangelog(cfg.StrictChangelog),
		WithLogger(logger),
		WithEmitter(ws.emitter),
	}
	res, err := Load(ctx, cfg.Dir, ws.Registry, loadOpts...)
	if err != nil {
		return nil, errors.Join(err, ws.Close())
	}
	ws.Result = res

	if cfg.Catalog.Enabled {
		if err := ws.openCatalog(ctx); err != nil {
			return nil, errors.Join(err, ws.Close())
		}
	}

	if cfg.Watch.Enabled {
		w, err := NewWatcher(cfg.Dir, ws.Registry, loadOpts...)
		if err != nil {
			return nil, errors.Join(err, ws.Close())
		}
		w.Track(res)
		if err := w.Start(); err != nil {
			w.Stop()
			return nil, errors.Join(err, ws.Close())
		}
		ws.watcher = w
		ws.changes = make(chan Change, 16)
		go ws.forward()
	}

	logger.Info("workspace open", "dir", cfg.Dir, "manifests", ws.Registry.Len(),
		"catalog", cfg.Catalog.Enabled, "watch", cfg.Watch.Enabled)
	return ws, nil
}

func (ws *Workspace) openCatalog(ctx context.Context) error {
	format, err := codec.ParseFormat(ws.Config.Format)
	if err != nil {
		return fmt.Errorf("loader: catalog format: %w", err)
	}
	cat, err := catalog.Open(ctx, ws.Config.Catalog.Path,
		catalog.WithFormat(format),
		catalog.WithLogger(ws.Logger),
		catalog.WithEmitter(ws.emitter))
	if err != nil {
		return err
	}
	ws.catalog = cat
	_, err = cat.Save(ctx, ws.Registry)
	return err
}

// forward relays watcher changes and keeps the catalog in step with them.
func (ws *Workspace) forward() {
	defer close(ws.forwarded)
	defer close(ws.changes)

	for c := range ws.watcher.Changes {
		if ws.catalog != nil && (c.Kind == ChangeUpdated || c.Kind == ChangeAdded || c.Kind == ChangeReplaced) {
			if _, err := ws.catalog.Save(context.Background(), ws.Registry); err != nil {
				ws.Logger.Error("catalog refresh failed", "location", c.Location, "err", err)
			}
		}
		select {
		case ws.changes <- c:
		case <-ws.closing:
		}
	}
}

// Changes returns applied file changes. It is nil unless watching is
// enabled, and is closed by Close.
func (ws *Workspace) Changes() <-chan Change {
	return ws.changes
}

// Snapshot saves the registry to the catalog and returns the number of
// manifests written.
func (ws *Workspace) Snapshot(ctx context.Context) (int, error) {
	if ws.catalog == nil {
		return 0, ErrCatalogDisabled
	}
	return ws.catalog.Save(ctx, ws.Registry)
}

// Close stops the watcher and closes the catalog and telemetry file. The
// registry and its manifests remain usable; a registry given with
// WithRegistry gets its previous logger and emitter back.
func (ws *Workspace) Close() error {
	ws.closeOnce.Do(func() {
		close(ws.closing)
		if ws.watcher != nil {
			ws.watcher.Stop()
			<-ws.forwarded
		}
		if ws.restoreRegistry != nil {
			ws.Registry.Observe(ws.restoreRegistry)
		}
		var errs []error
		if ws.catalog != nil {
			errs = append(errs, ws.catalog.Close())
		}
		errs = append(errs, ws.emitter.Close())
		ws.closeErr = errors.Join(errs...)
	})
	return ws.closeErr
}
