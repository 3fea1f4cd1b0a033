package manifest

// lookup returns the nearest explicit value of a field walking m and its
// ancestors, and the manifest that supplied it.
func lookup[T any](m *Manifest, get func(*Fields) Value[T]) (T, *Manifest) {
	for cur := m; cur != nil; cur = cur.parent {
		if v, ok := get(cur.fields.Load()).Get(); ok {
			return v, cur
		}
	}
	var zero T
	return zero, nil
}

func resolve[T any](m *Manifest, field Field, get func(*Fields) Value[T]) (T, error) {
	v, src := lookup(m, get)
	if src == nil {
		return v, &UnresolvedFieldError{Location: m.location.Key(), Field: field}
	}
	return v, nil
}

func getDescription(f *Fields) Value[string] { return f.Description }
func getAuthors(f *Fields) Value[AuthorList] { return f.Authors }
func getMaintainers(f *Fields) Value[AuthorList] { return f.Maintainers }
func getCopyright(f *Fields) Value[Copyright] { return f.Copyright }
func getLicense(f *Fields) Value[License] { return f.License }
func getStatus(f *Fields) Value[Status] { return f.Status }
func getDependencies(f *Fields) Value[[]Dependency] { return f.Dependencies }
func getChangelog(f *Fields) Value[[]ChangelogEntry] { return f.Changelog }
func getThreadSafety(f *Fields) Value[ThreadSafety] { return f.ThreadSafety }
func getAccessMode(f *Fields) Value[AccessMode] { return f.AccessMode }
func getFrontend(f *Fields) Value[Frontend] { return f.Frontend }
func getBackend(f *Fields) Value[Backend] { return f.Backend }
func getAIAccessLevel(f *Fields) Value[AIAccessLevel] { return f.AIAccessLevel }

// Description resolves the description.
func (m *Manifest) Description() (string, error) {
	return resolve(m, FieldDescription, getDescription)
}

// Authors resolves the author list.
func (m *Manifest) Authors() (AuthorList, error) {
	return resolve(m, FieldAuthors, getAuthors)
}

// Maintainers resolves the maintainer list. When no manifest in the chain
// sets maintainers, the resolved authors maintain the unit.
func (m *Manifest) Maintainers() (AuthorList, error) {
	if v, src := lookup(m, getMaintainers); src != nil {
		return v, nil
	}
	authors, err := m.Authors()
	if err != nil {
		return AuthorList{}, &UnresolvedFieldError{Location: m.location.Key(), Field: FieldMaintainers}
	}
	return authors, nil
}

// Copyright resolves the copyright record.
func (m *Manifest) Copyright() (Copyright, error) {
	return resolve(m, FieldCopyright, getCopyright)
}

// License resolves the license. It never fails: when no manifest in the
// chain names a license the result is Unspecified, never a permissive
// default.
func (m *Manifest) License() License {
	if v, src := lookup(m, getLicense); src != nil {
		return v
	}
	return Unspecified
}

// Status resolves the development status.
func (m *Manifest) Status() (Status, error) {
	return resolve(m, FieldStatus, getStatus)
}

// Dependencies resolves the dependency list. The result is a copy.
func (m *Manifest) Dependencies() ([]Dependency, error) {
	deps, err := resolve(m, FieldDependencies, getDependencies)
	if err != nil {
		return nil, err
	}
	return append([]Dependency{}, deps...), nil
}

// Changelog resolves the changelog. The result is a copy.
func (m *Manifest) Changelog() ([]ChangelogEntry, error) {
	entries, err := resolve(m, FieldChangelog, getChangelog)
	if err != nil {
		return nil, err
	}
	if out := cloneChangelog(entries); out != nil {
		return out, nil
	}
	return []ChangelogEntry{}, nil
}

// ThreadSafety resolves the thread-safety level.
func (m *Manifest) ThreadSafety() (ThreadSafety, error) {
	return resolve(m, FieldThreadSafety, getThreadSafety)
}

// AccessMode resolves the access mode.
func (m *Manifest) AccessMode() (AccessMode, error) {
	return resolve(m, FieldAccessMode, getAccessMode)
}

// Frontend resolves the frontend flags. The nearest manifest that sets the
// field supplies the whole set; flags are never merged across the chain.
func (m *Manifest) Frontend() (Frontend, error) {
	return resolve(m, FieldFrontend, getFrontend)
}

// Backend resolves the backend flags, with the same nearest-wins rule as
// Frontend.
func (m *Manifest) Backend() (Backend, error) {
	return resolve(m, FieldBackend, getBackend)
}

// AIAccessLevel resolves the AI access flags. The nearest manifest that sets
// the field supplies the whole set, so an ancestor can never add
// permissions a descendant did not declare.
func (m *Manifest) AIAccessLevel() (AIAccessLevel, error) {
	return resolve(m, FieldAIAccessLevel, getAIAccessLevel)
}

// Resolve returns the effective value of field as its concrete type
// (string, AuthorList, Copyright, License, Status, []Dependency,
// []ChangelogEntry, ThreadSafety, AccessMode, Frontend, Backend or
// AIAccessLevel).
func (m *Manifest) Resolve(field Field) (any, error) {
	switch field {
	case FieldDescription:
		return m.Description()
	case FieldAuthors:
		return m.Authors()
	case FieldMaintainers:
		return m.Maintainers()
	case FieldCopyright:
		return m.Copyright()
	case FieldLicense:
		return m.License(), nil
	case FieldStatus:
		return m.Status()
	case FieldDependencies:
		return m.Dependencies()
	case FieldChangelog:
		return m.Changelog()
	case FieldThreadSafety:
		return m.ThreadSafety()
	case FieldAccessMode:
		return m.AccessMode()
	case FieldFrontend:
		return m.Frontend()
	case FieldBackend:
		return m.Backend()
	case FieldAIAccessLevel:
		return m.AIAccessLevel()
	}
	return nil, ErrUnknownField
}

// Source returns the manifest that supplies field for m, or nil when the
// value comes from a system default (license floor, maintainers from
// authors) or is unresolved.
func (m *Manifest) Source(field Field) *Manifest {
	for cur := m; cur != nil; cur = cur.parent {
		if cur.fields.Load().IsSet(field) {
			return cur
		}
	}
	return nil
}

// IsInherited reports whether m takes field from an ancestor or a system
// default rather than setting it.
func (m *Manifest) IsInherited(field Field) bool {
	return !m.IsSet(field)
}

// Effective is a fully resolved manifest record.
type Effective struct {
	Location      Location
	Description   string
	Authors       AuthorList
	Maintainers   AuthorList
	Copyright     Copyright
	License       License
	Status        Status
	Dependencies  []Dependency
	Changelog     []ChangelogEntry
	ThreadSafety  ThreadSafety
	AccessMode    AccessMode
	Frontend      Frontend
	Backend       Backend
	AIAccessLevel AIAccessLevel
}

// Effective resolves every field. It fails with the first unresolved field.
func (m *Manifest) Effective() (Effective, error) {
	e := Effective{Location: m.location, License: m.License()}
	var err error
	if e.Description, err = m.Description(); err != nil {
		return Effective{}, err
	}
	if e.Authors, err = m.Authors(); err != nil {
		return Effective{}, err
	}
	if e.Maintainers, err = m.Maintainers(); err != nil {
		return Effective{}, err
	}
	if e.Copyright, err = m.Copyright(); err != nil {
		return Effective{}, err
	}
	if e.Status, err = m.Status(); err != nil {
		return Effective{}, err
	}
	if e.Dependencies, err = m.Dependencies(); err != nil {
		return Effective{}, err
	}
	if e.Changelog, err = m.Changelog(); err != nil {
		return Effective{}, err
	}
	if e.ThreadSafety, err = m.ThreadSafety(); err != nil {
		return Effective{}, err
	}
	if e.AccessMode, err = m.AccessMode(); err != nil {
		return Effective{}, err
	}
	if e.Frontend, err = m.Frontend(); err != nil {
		return Effective{}, err
	}
	if e.Backend, err = m.Backend(); err != nil {
		return Effective{}, err
	}
	if e.AIAccessLevel, err = m.AIAccessLevel(); err != nil {
		return Effective{}, err
	}
	return e, nil
}
