package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/papapumpkin/manifest/pkg/codec"
	"github.com/papapumpkin/manifest/pkg/manifest"
	"github.com/papapumpkin/manifest/pkg/registry"
)

// ChangeKind describes what a watched file change did to the registry.
type ChangeKind int

const (
	ChangeUpdated  ChangeKind = iota // Fields of a registered manifest replaced in place
	ChangeAdded                      // New document registered
	ChangeReplaced                   // Parent or root flag changed; manifest rebuilt
	ChangeRemoved                    // Document deleted; manifest stays registered
	ChangeFailed                     // Document could not be applied
)

var changeKindNames = [...]string{"updated", "added", "replaced", "removed", "failed"}

// String returns the lower-case name of k.
func (k ChangeKind) String() string {
	if k < 0 || int(k) >= len(changeKindNames) {
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
	return changeKindNames[k]
}

// Change reports one applied (or rejected) file change.
type Change struct {
	Kind     ChangeKind
	Location string // Location key, empty if the document never parsed
	File     string
	Err      error // Set for ChangeFailed
}

// Watcher monitors a directory of manifest documents with fsnotify and
// applies each settled change to a registry. Edits to a registered manifest
// go through Update, so descendants see inherited changes on their next
// resolution.
type Watcher struct {
	Dir     string
	Changes <-chan Change // Read-only external channel

	changes  chan Change
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  bool
	watcher  *fsnotify.Watcher
	reg      *registry.Registry
	opts     options

	files map[string]string // path → location key; owned by loop after Start
}

// NewWatcher creates a watcher for dir that applies changes to reg.
func NewWatcher(dir string, reg *registry.Registry, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("loader: creating watcher: %w", err)
	}

	ch := make(chan Change, 16)
	return &Watcher{
		Dir:     dir,
		Changes: ch,
		changes: ch,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		watcher: fw,
		reg:     reg,
		opts:    buildOptions(opts),
		files:   make(map[string]string),
	}, nil
}

// Track records the files of a previous Load so that their edits are
// matched to the manifests they produced. It must be called before Start.
func (w *Watcher) Track(res Result) {
	for file, key := range res.Files {
		w.files[file] = key
	}
}

// Start begins watching. With recursive options every existing
// subdirectory is watched, as are directories created later.
func (w *Watcher) Start() error {
	if err := w.addDirs(w.Dir); err != nil {
		w.watcher.Close()
		return err
	}
	w.started = true
	go w.loop()
	return nil
}

func (w *Watcher) addDirs(root string) error {
	if !w.opts.recursive {
		if err := w.watcher.Add(root); err != nil {
			return fmt.Errorf("loader: watching %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("loader: watching %s: %w", path, err)
		}
		return nil
	})
}

// Stop closes the watcher and the Changes channel. Pending changes are
// applied before it returns; they are reported only if a reader is still
// receiving. Stop is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.watcher.Close()
		if w.started {
			<-w.done // Wait for loop to exit
		}
		close(w.changes)
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	debounce := w.opts.debounce
	if debounce <= 0 {
		debounce = time.Millisecond
	}
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				// Drain pending on close.
				for _, file := range slices.Sorted(maps.Keys(pending)) {
					w.send(w.apply(file))
				}
				return
			}
			w.observe(event, pending)

		case <-ticker.C:
			now := time.Now()
			var ready []string
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					ready = append(ready, file)
				}
			}
			slices.Sort(ready)
			for _, file := range ready {
				delete(pending, file)
				w.send(w.apply(file))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.opts.logger.Warn("watch error", "dir", w.Dir, "err", err)
		}
	}
}

func (w *Watcher) observe(event fsnotify.Event, pending map[string]time.Time) {
	if event.Has(fsnotify.Create) && w.opts.recursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirs(event.Name); err != nil {
				w.opts.logger.Warn("watch new directory", "dir", event.Name, "err", err)
			}
			return
		}
	}
	if !w.opts.matches(event.Name) {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		pending[event.Name] = time.Now()
	}
}

// send delivers c unless the watcher is stopping.
func (w *Watcher) send(c Change) {
	select {
	case w.changes <- c:
	case <-w.stop:
	}
}

// apply re-reads file and brings the registry in line with it.
func (w *Watcher) apply(file string) Change {
	logger := w.opts.logger.With("file", file)
	known := w.files[file]

	doc, err := codec.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		delete(w.files, file)
		logger.Warn("manifest document removed; manifest stays registered", "location", known)
		return Change{Kind: ChangeRemoved, Location: known, File: file}
	}
	if err != nil {
		return w.fail(file, known, err)
	}
	loc, err := doc.LocationValue()
	if err != nil {
		return w.fail(file, known, err)
	}
	key := loc.Key()
	lookup := w.reg.LookupFunc()

	current, ok := lookup(key)
	if !ok {
		m, err := doc.Build(lookup)
		if err != nil {
			return w.fail(file, key, err)
		}
		if err := w.reg.Register(m); err != nil {
			return w.fail(file, key, err)
		}
		w.files[file] = key
		logger.Info("manifest added", "location", key)
		return Change{Kind: ChangeAdded, Location: key, File: file}
	}

	parentKey, err := doc.ParentKey()
	if err != nil {
		return w.fail(file, key, err)
	}
	var currentParent string
	if p := current.Parent(); p != nil {
		currentParent = p.Location().Key()
	}

	if parentKey != currentParent || doc.Root != current.IsRoot() {
		m, err := doc.Build(lookup)
		if err != nil {
			return w.fail(file, key, err)
		}
		if err := w.reg.Register(m, registry.WithReplace()); err != nil {
			return w.fail(file, key, err)
		}
		w.files[file] = key
		relinked := w.relink(current, m)
		logger.Info("manifest rebuilt", "location", key, "parent", parentKey, "descendants", relinked)
		return Change{Kind: ChangeReplaced, Location: key, File: file}
	}

	f, err := doc.Fields()
	if err != nil {
		return w.fail(file, key, err)
	}
	if doc.Root {
		f = manifest.FillRootDefaults(f)
	}
	if err := w.reg.Update(loc, func(cur *manifest.Fields) { *cur = f }); err != nil {
		return w.fail(file, key, err)
	}
	w.files[file] = key
	logger.Info("manifest updated", "location", key)
	return Change{Kind: ChangeUpdated, Location: key, File: file}
}

// relink rebuilds the registered descendants of prev on top of next, so
// that later edits to next reach them. It returns the rebuilt location keys.
// A descendant that no longer validates under next keeps prev as its parent.
func (w *Watcher) relink(prev, next *manifest.Manifest) []string {
	var rebuilt []string
	for _, child := range w.reg.Children(prev.Location()) {
		if child.Parent() != prev {
			continue
		}
		key := child.Location().Key()
		m, err := manifest.New(child.Location(), child.Fields(), manifest.WithParent(next))
		if err == nil {
			err = w.reg.Register(m, registry.WithReplace())
		}
		if err != nil {
			w.opts.logger.Warn("descendant keeps previous parent", "location", key, "parent", next.Location().Key(), "err", err)
			continue
		}
		rebuilt = append(rebuilt, key)
		rebuilt = append(rebuilt, w.relink(child, m)...)
	}
	return rebuilt
}

func (w *Watcher) fail(file, key string, err error) Change {
	w.opts.logger.Error("manifest change rejected", "file", file, "location", key, "err", err)
	return Change{Kind: ChangeFailed, Location: key, File: file, Err: err}
}
