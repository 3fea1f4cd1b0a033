// Package registry is the process-wide index of manifests by location.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/papapumpkin/manifest/internal/logging"
	"github.com/papapumpkin/manifest/internal/telemetry"
	"github.com/papapumpkin/manifest/pkg/manifest"
)

// ConflictError reports a registration at a location that already holds a
// manifest. It matches manifest.ErrConflict with errors.Is.
type ConflictError struct {
	Location string
}

// Error names the occupied location.
func (e *ConflictError) Error() string {
	return manifest.ErrConflict.Error() + " at " + e.Location
}

// Is reports whether target is manifest.ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == manifest.ErrConflict
}

// Registry maps location keys to manifests. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byKey   map[string]*manifest.Manifest
	logger  *log.Logger
	emitter *telemetry.Emitter
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration events.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithEmitter records registration events to e.
func WithEmitter(e *telemetry.Emitter) Option {
	return func(r *Registry) {
		r.emitter = e
	}
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{byKey: make(map[string]*manifest.Manifest)}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	return r
}

// RegisterOption configures a single Register call.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	replace bool
}

// WithReplace lets Register supersede a manifest already registered at the
// same location.
func WithReplace() RegisterOption {
	return func(o *registerOptions) {
		o.replace = true
	}
}

// Register adds m under its location key. A second registration at the same
// location fails with *ConflictError unless WithReplace is given.
func (r *Registry) Register(m *manifest.Manifest, opts ...RegisterOption) error {
	if m == nil {
		return fmt.Errorf("registry: register nil manifest: %w", manifest.ErrValidation)
	}
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	key := m.Location().Key()
	r.mu.Lock()
	prev, exists := r.byKey[key]
	if exists && !o.replace {
		r.mu.Unlock()
		return &ConflictError{Location: key}
	}
	r.byKey[key] = m
	r.mu.Unlock()

	kind := telemetry.KindManifestRegistered
	if exists {
		kind = telemetry.KindManifestReplaced
		r.currentLogger().Warn("manifest replaced", "location", key, "same", prev == m)
	} else {
		r.currentLogger().Debug("manifest registered", "location", key)
	}
	r.emit(kind, key)
	return nil
}

// MustRegister registers m and returns it, panicking on conflict. It is
// meant for package-level declarations.
func (r *Registry) MustRegister(m *manifest.Manifest) *manifest.Manifest {
	if err := r.Register(m); err != nil {
		panic(err)
	}
	return m
}

// RegisterAll registers ms as one batch. Without WithReplace, any location
// already held, or repeated within ms, fails the whole batch before anything
// is registered.
func (r *Registry) RegisterAll(ms []*manifest.Manifest, opts ...RegisterOption) error {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	keys := make([]string, len(ms))
	seen := make(map[string]bool, len(ms))
	for i, m := range ms {
		if m == nil {
			return fmt.Errorf("registry: register nil manifest at index %d: %w", i, manifest.ErrValidation)
		}
		keys[i] = m.Location().Key()
		if seen[keys[i]] {
			return &ConflictError{Location: keys[i]}
		}
		seen[keys[i]] = true
	}

	replaced := make([]bool, len(ms))
	r.mu.Lock()
	if !o.replace {
		for _, key := range keys {
			if _, exists := r.byKey[key]; exists {
				r.mu.Unlock()
				return &ConflictError{Location: key}
			}
		}
	}
	for i, m := range ms {
		_, replaced[i] = r.byKey[keys[i]]
		r.byKey[keys[i]] = m
	}
	r.mu.Unlock()

	for i, key := range keys {
		if replaced[i] {
			r.currentLogger().Warn("manifest replaced", "location", key)
			r.emit(telemetry.KindManifestReplaced, key)
			continue
		}
		r.currentLogger().Debug("manifest registered", "location", key)
		r.emit(telemetry.KindManifestRegistered, key)
	}
	return nil
}

// Lookup returns the manifest registered at loc, or an error wrapping
// manifest.ErrNotFound.
func (r *Registry) Lookup(loc manifest.Location) (*manifest.Manifest, error) {
	return r.LookupKey(loc.Key())
}

// LookupKey is Lookup by location key.
func (r *Registry) LookupKey(key string) (*manifest.Manifest, error) {
	r.mu.RLock()
	m, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: %w: %s", manifest.ErrNotFound, key)
	}
	return m, nil
}

// Resolve looks up loc and resolves field on it.
func (r *Registry) Resolve(loc manifest.Location, field manifest.Field) (any, error) {
	m, err := r.Lookup(loc)
	if err != nil {
		return nil, err
	}
	return m.Resolve(field)
}

// Update applies fn to the manifest registered at loc. Descendants that
// inherit a changed field observe it on their next resolution.
func (r *Registry) Update(loc manifest.Location, fn func(f *manifest.Fields)) error {
	m, err := r.Lookup(loc)
	if err != nil {
		return err
	}
	if err := m.Update(fn); err != nil {
		return err
	}
	key := loc.Key()
	r.currentLogger().Debug("manifest updated", "location", key)
	r.emit(telemetry.KindManifestUpdated, key)
	return nil
}

// Remove drops the manifest at loc from the index. Manifests that already
// hold it as their parent keep resolving through it.
func (r *Registry) Remove(loc manifest.Location) error {
	key := loc.Key()
	r.mu.Lock()
	_, ok := r.byKey[key]
	delete(r.byKey, key)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("registry: %w: %s", manifest.ErrNotFound, key)
	}
	r.currentLogger().Warn("manifest removed", "location", key)
	r.emit(telemetry.KindManifestRemoved, key)
	return nil
}

// Len returns the number of registered manifests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

// All returns every registered manifest ordered by location key.
func (r *Registry) All() []*manifest.Manifest {
	return r.filter(func(*manifest.Manifest) bool { return true })
}

// Children returns the registered manifests whose parent is at loc.
func (r *Registry) Children(loc manifest.Location) []*manifest.Manifest {
	key := loc.Key()
	return r.filter(func(m *manifest.Manifest) bool {
		p := m.Parent()
		return p != nil && p.Location().Key() == key
	})
}

// Roots returns the registered manifests that have no parent.
func (r *Registry) Roots() []*manifest.Manifest {
	return r.filter(func(m *manifest.Manifest) bool { return m.Parent() == nil })
}

// Contains returns the registered manifests located inside loc.
func (r *Registry) Contains(loc manifest.Location) []*manifest.Manifest {
	return r.filter(func(m *manifest.Manifest) bool { return loc.Contains(m.Location()) })
}

func (r *Registry) filter(keep func(*manifest.Manifest) bool) []*manifest.Manifest {
	r.mu.RLock()
	out := make([]*manifest.Manifest, 0, len(r.byKey))
	for _, m := range r.byKey {
		if keep(m) {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Location().Key() < out[j].Location().Key()
	})
	return out
}

// LookupFunc adapts the registry to the parent lookup used when building
// manifests from documents.
func (r *Registry) LookupFunc() func(key string) (*manifest.Manifest, bool) {
	return func(key string) (*manifest.Manifest, bool) {
		m, err := r.LookupKey(key)
		return m, err == nil
	}
}

// Observe applies logger and emitter options to an existing registry, such
// as Global. It returns an option that restores the previous settings when
// passed to Observe again.
func (r *Registry) Observe(opts ...Option) Option {
	r.mu.Lock()
	defer r.mu.Unlock()
	prevLogger, prevEmitter := r.logger, r.emitter
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	return func(r *Registry) {
		r.logger, r.emitter = prevLogger, prevEmitter
	}
}

func (r *Registry) currentLogger() *log.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

func (r *Registry) emit(kind, key string) {
	r.mu.RLock()
	logger, emitter := r.logger, r.emitter
	r.mu.RUnlock()

	evt := telemetry.Now(kind)
	evt.Location = key
	if err := emitter.Emit(evt); err != nil {
		logger.Warn("telemetry emit failed", "kind", kind, "err", err)
	}
}

// IsConflict reports whether err is a registration conflict.
func IsConflict(err error) bool {
	return errors.Is(err, manifest.ErrConflict)
}
