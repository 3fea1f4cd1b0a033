package codec

import (
	"fmt"

	"github.com/papapumpkin/manifest/pkg/manifest"
)

// Document is the persisted form of one manifest. A nil field is unset and
// resolves through the parent; a non-nil field is explicit, even when it
// holds an empty value.
type Document struct {
	// File is the path the document was read from. It is not persisted.
	File string `toml:"-" yaml:"-"`

	Location string `toml:"location" yaml:"location"`
	Parent   string `toml:"parent,omitempty" yaml:"parent,omitempty"`
	Root     bool   `toml:"root,omitempty" yaml:"root,omitempty"`

	Description   *string `toml:"description,omitempty" yaml:"description,omitempty"`
	Status        *string `toml:"status,omitempty" yaml:"status,omitempty"`
	ThreadSafety  *string `toml:"thread_safety,omitempty" yaml:"thread_safety,omitempty"`
	AccessMode    *string `toml:"access_mode,omitempty" yaml:"access_mode,omitempty"`
	Frontend      *string `toml:"frontend,omitempty" yaml:"frontend,omitempty"`
	Backend       *string `toml:"backend,omitempty" yaml:"backend,omitempty"`
	AIAccessLevel *string `toml:"ai_access_level,omitempty" yaml:"ai_access_level,omitempty"`

	License      *LicenseDoc      `toml:"license,omitempty" yaml:"license,omitempty"`
	Copyright    *CopyrightDoc    `toml:"copyright,omitempty" yaml:"copyright,omitempty"`
	Authors      *[]AuthorDoc     `toml:"authors,omitempty" yaml:"authors,omitempty"`
	Maintainers  *[]AuthorDoc     `toml:"maintainers,omitempty" yaml:"maintainers,omitempty"`
	Dependencies *[]DependencyDoc `toml:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Changelog    *[]ChangelogDoc  `toml:"changelog,omitempty" yaml:"changelog,omitempty"`
}

// AuthorDoc is the persisted form of manifest.Author.
type AuthorDoc struct {
	Tag          string `toml:"tag" yaml:"tag"`
	Name         string `toml:"name" yaml:"name"`
	Email        string `toml:"email,omitempty" yaml:"email,omitempty"`
	Company      string `toml:"company,omitempty" yaml:"company,omitempty"`
	SinceVersion string `toml:"since_version,omitempty" yaml:"since_version,omitempty"`
	SinceDate    string `toml:"since_date,omitempty" yaml:"since_date,omitempty"`
}

// LicenseDoc is the persisted form of manifest.License. A document that
// names only a built-in SPDX identifier gets the built-in name and URL.
type LicenseDoc struct {
	SPDX string `toml:"spdx" yaml:"spdx"`
	Name string `toml:"name,omitempty" yaml:"name,omitempty"`
	URL  string `toml:"url,omitempty" yaml:"url,omitempty"`
}

// CopyrightDoc is the persisted form of manifest.Copyright.
type CopyrightDoc struct {
	Date   string     `toml:"date,omitempty" yaml:"date,omitempty"`
	Author *AuthorDoc `toml:"author,omitempty" yaml:"author,omitempty"`
}

// DependencyDoc is the persisted form of manifest.Dependency.
type DependencyDoc struct {
	Type     string `toml:"type" yaml:"type"`
	Name     string `toml:"name" yaml:"name"`
	Version  string `toml:"version,omitempty" yaml:"version,omitempty"`
	Category string `toml:"category,omitempty" yaml:"category,omitempty"`
}

// ChangelogDoc is the persisted form of manifest.ChangelogEntry.
type ChangelogDoc struct {
	Version string     `toml:"version" yaml:"version"`
	Date    string     `toml:"date,omitempty" yaml:"date,omitempty"`
	Author  *AuthorDoc `toml:"author,omitempty" yaml:"author,omitempty"`
	Notes   []string   `toml:"notes,omitempty" yaml:"notes,omitempty"`
}

func ptr[T any](v T) *T {
	return &v
}

// FromManifest captures the explicit fields of m. Inherited fields stay nil.
func FromManifest(m *manifest.Manifest) Document {
	doc := FromFields(m.Location(), m.Fields())
	if p := m.Parent(); p != nil {
		doc.Parent = p.Location().Key()
	}
	doc.Root = m.IsRoot()
	return doc
}

// FromFields builds a parentless document for loc holding the set fields of f.
func FromFields(loc manifest.Location, f manifest.Fields) Document {
	doc := Document{Location: loc.Key()}
	if v, ok := f.Description.Get(); ok {
		doc.Description = ptr(v)
	}
	if v, ok := f.Status.Get(); ok {
		doc.Status = ptr(string(v))
	}
	if v, ok := f.ThreadSafety.Get(); ok {
		doc.ThreadSafety = ptr(string(v))
	}
	if v, ok := f.AccessMode.Get(); ok {
		doc.AccessMode = ptr(string(v))
	}
	if v, ok := f.Frontend.Get(); ok {
		doc.Frontend = ptr(v.String())
	}
	if v, ok := f.Backend.Get(); ok {
		doc.Backend = ptr(v.String())
	}
	if v, ok := f.AIAccessLevel.Get(); ok {
		doc.AIAccessLevel = ptr(v.String())
	}
	if v, ok := f.License.Get(); ok {
		doc.License = &LicenseDoc{SPDX: v.SPDX, Name: v.Name, URL: v.URL}
	}
	if v, ok := f.Copyright.Get(); ok {
		doc.Copyright = &CopyrightDoc{Date: v.Date.String(), Author: authorDocPtr(v.Author)}
	}
	if v, ok := f.Authors.Get(); ok {
		doc.Authors = ptr(authorDocs(v))
	}
	if v, ok := f.Maintainers.Get(); ok {
		doc.Maintainers = ptr(authorDocs(v))
	}
	if v, ok := f.Dependencies.Get(); ok {
		deps := make([]DependencyDoc, len(v))
		for i, d := range v {
			deps[i] = DependencyDoc{Type: string(d.Type), Name: d.Name, Version: d.Version, Category: string(d.Category)}
		}
		doc.Dependencies = &deps
	}
	if v, ok := f.Changelog.Get(); ok {
		entries := make([]ChangelogDoc, len(v))
		for i, e := range v {
			entries[i] = ChangelogDoc{
				Version: e.Version,
				Date:    e.Date.String(),
				Author:  authorDocPtr(e.Author),
				Notes:   append([]string(nil), e.Notes...),
			}
		}
		doc.Changelog = &entries
	}
	return doc
}

func authorDoc(a manifest.Author) AuthorDoc {
	return AuthorDoc{
		Tag:          a.Tag,
		Name:         a.Name,
		Email:        a.Email,
		Company:      a.Company,
		SinceVersion: a.SinceVersion,
		SinceDate:    a.SinceDate.String(),
	}
}

func authorDocPtr(a manifest.Author) *AuthorDoc {
	if a == (manifest.Author{}) {
		return nil
	}
	return ptr(authorDoc(a))
}

func authorDocs(l manifest.AuthorList) []AuthorDoc {
	out := make([]AuthorDoc, 0, l.Len())
	for _, a := range l.All() {
		out = append(out, authorDoc(a))
	}
	return out
}

// LocationValue parses the document's location key.
func (d *Document) LocationValue() (manifest.Location, error) {
	loc, err := manifest.ParseLocation(d.Location)
	if err != nil {
		return manifest.Location{}, d.wrap(err)
	}
	return loc, nil
}

// ParentKey returns the normalized key of the parent location, or "".
func (d *Document) ParentKey() (string, error) {
	if d.Parent == "" {
		return "", nil
	}
	loc, err := manifest.ParseLocation(d.Parent)
	if err != nil {
		return "", d.wrap(err)
	}
	return loc.Key(), nil
}

// Fields converts the document's explicit values into manifest.Fields.
// Values are checked by the manifest when it is built; Fields only reports
// text that cannot be parsed at all.
func (d *Document) Fields() (manifest.Fields, error) {
	var f manifest.Fields
	if d.Description != nil {
		f.Description = manifest.Set(*d.Description)
	}
	if d.Status != nil {
		f.Status = manifest.Set(manifest.Status(*d.Status))
	}
	if d.ThreadSafety != nil {
		f.ThreadSafety = manifest.Set(manifest.ThreadSafety(*d.ThreadSafety))
	}
	if d.AccessMode != nil {
		f.AccessMode = manifest.Set(manifest.AccessMode(*d.AccessMode))
	}
	if d.Frontend != nil {
		v, err := manifest.ParseFrontend(*d.Frontend)
		if err != nil {
			return f, d.wrap(err)
		}
		f.Frontend = manifest.Set(v)
	}
	if d.Backend != nil {
		v, err := manifest.ParseBackend(*d.Backend)
		if err != nil {
			return f, d.wrap(err)
		}
		f.Backend = manifest.Set(v)
	}
	if d.AIAccessLevel != nil {
		v, err := manifest.ParseAIAccessLevel(*d.AIAccessLevel)
		if err != nil {
			return f, d.wrap(err)
		}
		f.AIAccessLevel = manifest.Set(v)
	}
	if d.License != nil {
		f.License = manifest.Set(d.License.license())
	}
	if d.Copyright != nil {
		c, err := d.Copyright.copyright()
		if err != nil {
			return f, d.wrap(err)
		}
		f.Copyright = manifest.Set(c)
	}
	if d.Authors != nil {
		l, err := authorList(*d.Authors)
		if err != nil {
			return f, d.wrap(err)
		}
		f.Authors = manifest.Set(l)
	}
	if d.Maintainers != nil {
		l, err := authorList(*d.Maintainers)
		if err != nil {
			return f, d.wrap(err)
		}
		f.Maintainers = manifest.Set(l)
	}
	if d.Dependencies != nil {
		deps := make([]manifest.Dependency, len(*d.Dependencies))
		for i, dd := range *d.Dependencies {
			deps[i] = manifest.Dependency{
				Type:     manifest.DependencyType(dd.Type),
				Name:     dd.Name,
				Version:  dd.Version,
				Category: manifest.DependencyCategory(dd.Category),
			}
		}
		f.Dependencies = manifest.Set(deps)
	}
	if d.Changelog != nil {
		entries := make([]manifest.ChangelogEntry, len(*d.Changelog))
		for i, cd := range *d.Changelog {
			date, err := manifest.ParseDate(cd.Date)
			if err != nil {
				return f, d.wrap(fmt.Errorf("changelog[%d]: %w", i, err))
			}
			var author manifest.Author
			if cd.Author != nil {
				if author, err = cd.Author.author(); err != nil {
					return f, d.wrap(fmt.Errorf("changelog[%d]: %w", i, err))
				}
			}
			entries[i] = manifest.ChangelogEntry{
				Version: cd.Version,
				Date:    date,
				Author:  author,
				Notes:   append([]string(nil), cd.Notes...),
			}
		}
		f.Changelog = manifest.Set(entries)
	}
	return f, nil
}

func (l LicenseDoc) license() manifest.License {
	if l.Name == "" && l.URL == "" {
		if known, ok := manifest.LookupLicense(l.SPDX); ok {
			return known
		}
	}
	return manifest.License{SPDX: l.SPDX, Name: l.Name, URL: l.URL}
}

func (c CopyrightDoc) copyright() (manifest.Copyright, error) {
	date, err := manifest.ParseDate(c.Date)
	if err != nil {
		return manifest.Copyright{}, fmt.Errorf("copyright: %w", err)
	}
	out := manifest.Copyright{Date: date}
	if c.Author != nil {
		if out.Author, err = c.Author.author(); err != nil {
			return manifest.Copyright{}, fmt.Errorf("copyright: %w", err)
		}
	}
	return out, nil
}

func (a AuthorDoc) author() (manifest.Author, error) {
	since, err := manifest.ParseDate(a.SinceDate)
	if err != nil {
		return manifest.Author{}, fmt.Errorf("author %s: %w", a.Tag, err)
	}
	return manifest.Author{
		Tag:          a.Tag,
		Name:         a.Name,
		Email:        a.Email,
		Company:      a.Company,
		SinceVersion: a.SinceVersion,
		SinceDate:    since,
	}, nil
}

func authorList(docs []AuthorDoc) (manifest.AuthorList, error) {
	authors := make([]manifest.Author, len(docs))
	for i, ad := range docs {
		a, err := ad.author()
		if err != nil {
			return manifest.AuthorList{}, err
		}
		authors[i] = a
	}
	return manifest.NewAuthorList(authors...)
}

// Build constructs the manifest described by d. parent resolves the parent
// key; it is not consulted for root or parentless documents.
func (d *Document) Build(parent func(key string) (*manifest.Manifest, bool)) (*manifest.Manifest, error) {
	loc, err := d.LocationValue()
	if err != nil {
		return nil, err
	}
	f, err := d.Fields()
	if err != nil {
		return nil, err
	}
	parentKey, err := d.ParentKey()
	if err != nil {
		return nil, err
	}

	if d.Root {
		if parentKey != "" {
			return nil, d.wrap(&manifest.ValidationError{Location: loc.Key(), Field: "parent", Err: fmt.Errorf("root manifest cannot have parent %s", parentKey)})
		}
		m, err := manifest.NewRoot(loc, f)
		if err != nil {
			return nil, d.wrap(err)
		}
		return m, nil
	}

	var opts []manifest.Option
	if parentKey != "" {
		var p *manifest.Manifest
		var ok bool
		if parent != nil {
			p, ok = parent(parentKey)
		}
		if !ok {
			return nil, d.wrap(fmt.Errorf("parent %s: %w", parentKey, manifest.ErrNotFound))
		}
		opts = append(opts, manifest.WithParent(p))
	}
	m, err := manifest.New(loc, f, opts...)
	if err != nil {
		return nil, d.wrap(err)
	}
	return m, nil
}

func (d *Document) wrap(err error) error {
	return &DocumentError{File: d.File, Location: d.Location, Err: err}
}
