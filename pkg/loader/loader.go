// Package loader reads manifest documents from a directory into a registry
// and keeps the registry in step with the files while they are edited.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/manifest/internal/logging"
	"github.com/papapumpkin/manifest/internal/telemetry"
	"github.com/papapumpkin/manifest/pkg/codec"
	"github.com/papapumpkin/manifest/pkg/config"
	"github.com/papapumpkin/manifest/pkg/manifest"
	"github.com/papapumpkin/manifest/pkg/registry"
)

// Result summarizes a Load.
type Result struct {
	// Manifests are the registered manifests, parents before children.
	Manifests []*manifest.Manifest
	// Files maps each loaded document path to its location key.
	Files map[string]string
	// Issues holds changelog lint findings by location key.
	Issues map[string][]manifest.ChangelogIssue
}

// ChangelogError is returned by Load in strict mode when a document's
// changelog fails linting.
type ChangelogError struct {
	File     string
	Location string
	Issues   []manifest.ChangelogIssue
}

// Error lists every issue after the file and location.
func (e *ChangelogError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Location, strings.Join(parts, "; "))
}

type options struct {
	patterns        []string
	recursive       bool
	workers         int
	debounce        time.Duration
	strictChangelog bool
	logger          *log.Logger
	emitter         *telemetry.Emitter
}

// Option configures Load and NewWatcher.
type Option func(*options)

// WithPatterns sets the base-name globs that select manifest documents.
func WithPatterns(patterns ...string) Option {
	return func(o *options) {
		o.patterns = patterns
	}
}

// WithRecursive descends into subdirectories.
func WithRecursive(recursive bool) Option {
	return func(o *options) {
		o.recursive = recursive
	}
}

// WithWorkers bounds the number of documents parsed concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithDebounce sets how long a watched file must be quiet before it is
// re-read.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithStrictChangelog fails Load when any changelog has lint issues instead
// of logging them.
func WithStrictChangelog(strict bool) Option {
	return func(o *options) {
		o.strictChangelog = strict
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithEmitter records load events to e.
func WithEmitter(e *telemetry.Emitter) Option {
	return func(o *options) {
		o.emitter = e
	}
}

func buildOptions(opts []Option) options {
	o := options{
		patterns:  config.DefaultPatterns,
		recursive: true,
		workers:   8,
		debounce:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	o.logger = logging.OrDiscard(o.logger)
	return o
}

func (o *options) emit(evt telemetry.Event) {
	if err := o.emitter.Emit(evt); err != nil {
		o.logger.Warn("telemetry emit failed", "kind", evt.Kind, "err", err)
	}
}

func (o *options) matches(path string) bool {
	base := filepath.Base(path)
	for _, p := range o.patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// find returns the matching document paths under dir in lexical order.
func (o *options) find(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !o.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if o.matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Load parses every manifest document under dir and registers the result
// in reg, parents first. Parents outside dir must already be registered.
// Documents are parsed concurrently; on any error nothing is registered and
// the error names the offending file.
func Load(ctx context.Context, dir string, reg *registry.Registry, opts ...Option) (Result, error) {
	o := buildOptions(opts)
	start := time.Now()

	evt := telemetry.Now(telemetry.KindLoadStart)
	evt.File = dir
	o.emit(evt)

	res, err := load(ctx, dir, reg, &o)
	if err != nil {
		o.logger.Error("load failed", "dir", dir, "err", err)
		evt := telemetry.Now(telemetry.KindLoadFailed)
		evt.File = dir
		evt.Data = map[string]string{"error": err.Error()}
		o.emit(evt)
		return Result{}, err
	}

	o.logger.Info("manifests loaded", "dir", dir, "files", len(res.Files), "manifests", len(res.Manifests), "elapsed", time.Since(start))
	evt = telemetry.Now(telemetry.KindLoadDone)
	evt.File = dir
	evt.Data = map[string]int{"files": len(res.Files), "manifests": len(res.Manifests)}
	o.emit(evt)
	return res, nil
}

func load(ctx context.Context, dir string, reg *registry.Registry, o *options) (Result, error) {
	files, err := o.find(dir)
	if err != nil {
		return Result{}, fmt.Errorf("loader: scanning %s: %w", dir, err)
	}

	docs := make([]codec.Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := codec.ReadFile(file)
			if err != nil {
				return err
			}
			docs[i] = doc
			o.logger.Debug("document parsed", "file", file, "location", doc.Location)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("loader: %w", err)
	}

	ms, err := codec.Assemble(docs, reg.LookupFunc())
	if err != nil {
		return Result{}, fmt.Errorf("loader: %w", err)
	}

	res := Result{
		Manifests: ms,
		Files:     make(map[string]string, len(docs)),
		Issues:    make(map[string][]manifest.ChangelogIssue),
	}
	fileOf := make(map[string]string, len(docs))
	for _, d := range docs {
		if loc, err := d.LocationValue(); err == nil {
			fileOf[loc.Key()] = d.File
		}
	}
	for _, m := range ms {
		key := m.Location().Key()
		res.Files[fileOf[key]] = key
		issues := lintChangelog(m)
		if len(issues) == 0 {
			continue
		}
		if o.strictChangelog {
			return Result{}, fmt.Errorf("loader: %w", &ChangelogError{File: fileOf[key], Location: key, Issues: issues})
		}
		res.Issues[key] = issues
		for _, issue := range issues {
			o.logger.Warn("changelog issue", "file", fileOf[key], "location", key, "issue", issue)
		}
	}

	if err := reg.RegisterAll(ms); err != nil {
		return Result{}, fmt.Errorf("loader: %w", err)
	}
	return res, nil
}

// lintChangelog checks the changelog m stores itself; inherited entries are
// linted where they are defined.
func lintChangelog(m *manifest.Manifest) []manifest.ChangelogIssue {
	entries, ok := m.Fields().Changelog.Get()
	if !ok {
		return nil
	}
	return manifest.LintChangelog(entries)
}
