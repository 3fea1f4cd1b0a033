package manifest

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Manifest is the metadata record of one code unit. Its location and parent
// are fixed at construction. Its explicit fields are published as a whole
// record, so concurrent readers observe either the record before an Update
// or the one after it.
type Manifest struct {
	location Location
	parent   *Manifest
	root     bool

	mu     sync.Mutex // serializes Update
	fields atomic.Pointer[Fields]
}

// Option configures New.
type Option func(*options)

type options struct {
	parent *Manifest
}

// WithParent links the new manifest to parent for field resolution.
func WithParent(parent *Manifest) Option {
	return func(o *options) {
		o.parent = parent
	}
}

// New validates fields and returns a manifest for loc. Only the fields set
// in f are stored; every other field resolves through the parent.
func New(loc Location, f Fields, opts ...Option) (*Manifest, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return build(loc, f, o.parent, false)
}

// MustNew is New for package-level declarations; it panics on error.
func MustNew(loc Location, f Fields, opts ...Option) *Manifest {
	m, err := New(loc, f, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// RootDefaults returns the values a project-root manifest supplies for
// every inheritable field it does not set itself. License and maintainers
// have no root default: an unlicensed chain resolves to Unspecified and
// unset maintainers resolve to the authors.
func RootDefaults() Fields {
	return Fields{
		Description:   Set(""),
		Authors:       Set(AuthorList{}),
		Copyright:     Set(Copyright{}),
		Status:        Set(StatusDevelopment),
		Dependencies:  Set([]Dependency{}),
		Changelog:     Set([]ChangelogEntry{}),
		ThreadSafety:  Set(ThreadUnsafe),
		AccessMode:    Set(AccessAPI),
		Frontend:      Set(NoFrontend),
		Backend:       Set(NoBackend),
		AIAccessLevel: Set(AIRead),
	}
}

// NewRoot returns the project-root manifest for loc. Fields left unset in f
// are filled from RootDefaults, so resolution always terminates at the root.
func NewRoot(loc Location, f Fields) (*Manifest, error) {
	return build(loc, FillRootDefaults(f), nil, true)
}

// MustNewRoot is NewRoot for package-level declarations; it panics on error.
func MustNewRoot(loc Location, f Fields) *Manifest {
	m, err := NewRoot(loc, f)
	if err != nil {
		panic(err)
	}
	return m
}

// FillRootDefaults returns f with every unset field taken from RootDefaults.
func FillRootDefaults(f Fields) Fields {
	d := RootDefaults()
	if !f.Description.IsSet() {
		f.Description = d.Description
	}
	if !f.Authors.IsSet() {
		f.Authors = d.Authors
	}
	if !f.Copyright.IsSet() {
		f.Copyright = d.Copyright
	}
	if !f.Status.IsSet() {
		f.Status = d.Status
	}
	if !f.Dependencies.IsSet() {
		f.Dependencies = d.Dependencies
	}
	if !f.Changelog.IsSet() {
		f.Changelog = d.Changelog
	}
	if !f.ThreadSafety.IsSet() {
		f.ThreadSafety = d.ThreadSafety
	}
	if !f.AccessMode.IsSet() {
		f.AccessMode = d.AccessMode
	}
	if !f.Frontend.IsSet() {
		f.Frontend = d.Frontend
	}
	if !f.Backend.IsSet() {
		f.Backend = d.Backend
	}
	if !f.AIAccessLevel.IsSet() {
		f.AIAccessLevel = d.AIAccessLevel
	}
	return f
}

func build(loc Location, f Fields, parent *Manifest, root bool) (*Manifest, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := checkCycle(loc, parent); err != nil {
			return nil, err
		}
	}
	f = f.clone()
	m := &Manifest{location: loc, parent: parent, root: root}
	if err := m.check(&f); err != nil {
		return nil, err
	}
	m.fields.Store(&f)
	return m, nil
}

// rootOptional lists the fields a root may leave unset because resolution
// has a system default for them.
var rootOptional = map[Field]bool{FieldLicense: true, FieldMaintainers: true}

// checkCycle walks the ancestors of parent by identity of location and
// fails if loc already appears in the chain.
func checkCycle(loc Location, parent *Manifest) error {
	key := loc.Key()
	path := []string{key}
	for p := parent; p != nil; p = p.parent {
		path = append(path, p.location.Key())
		if p.location.Key() == key {
			return &CycleError{Path: path}
		}
	}
	return nil
}

// check validates f as the explicit record of m.
func (m *Manifest) check(f *Fields) error {
	if err := f.validate(m.location); err != nil {
		return err
	}
	if m.root {
		for _, field := range AllFields {
			if !rootOptional[field] && !f.IsSet(field) {
				return invalid(m.location, string(field), errors.New("root manifest must supply a default"))
			}
		}
	}
	if maint, ok := f.Maintainers.Get(); ok && maint.Len() > 0 {
		authors, ok := f.Authors.Get()
		if !ok && m.parent != nil {
			authors, _ = lookup(m.parent, getAuthors)
		}
		if authors.Len() == 0 {
			return invalid(m.location, string(FieldMaintainers),
				fmt.Errorf("maintainer %q is not among the authors (no authors)", maint.At(0).Tag))
		}
	}
	return nil
}

// CreateChild returns a manifest at loc whose parent is m. Only the fields
// set in overrides are stored on the child; the rest resolve through m at
// read time. m is not modified.
func (m *Manifest) CreateChild(loc Location, overrides Fields) (*Manifest, error) {
	return New(loc, overrides, WithParent(m))
}

// Update applies fn to a copy of the explicit record and publishes it if it
// validates. It is the only way to change a manifest after construction.
// Children that inherit a changed field observe the new value on their next
// resolution. Only m's own record is validated: descendants are not
// re-checked, so a child whose maintainers relied on authors inherited from
// m keeps them until its own next Update, which then fails validation.
func (m *Manifest) Update(fn func(f *Fields)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.fields.Load().clone()
	fn(&next)
	next = next.clone()
	if err := m.check(&next); err != nil {
		return err
	}
	m.fields.Store(&next)
	return nil
}

// Location returns the code unit the manifest belongs to.
func (m *Manifest) Location() Location {
	return m.location
}

// Parent returns the parent manifest, or nil.
func (m *Manifest) Parent() *Manifest {
	return m.parent
}

// IsRoot reports whether m was created with NewRoot.
func (m *Manifest) IsRoot() bool {
	return m.root
}

// Root returns the top of m's chain, which is m itself for a parentless
// manifest.
func (m *Manifest) Root() *Manifest {
	cur := m
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Ancestors returns the parent chain from the nearest parent upwards.
func (m *Manifest) Ancestors() []*Manifest {
	var out []*Manifest
	for p := m.parent; p != nil; p = p.parent {
		out = append(out, p)
	}
	return out
}

// Fields returns a copy of the explicit record. Unset values are the
// fields m inherits.
func (m *Manifest) Fields() Fields {
	return m.fields.Load().clone()
}

// IsSet reports whether field is set explicitly on m.
func (m *Manifest) IsSet(field Field) bool {
	return m.fields.Load().IsSet(field)
}

// String returns the location key and the version when one is recorded.
func (m *Manifest) String() string {
	if v, err := m.Version(); err == nil {
		return m.location.Key() + " (v" + v.String() + ")"
	}
	return m.location.Key()
}
