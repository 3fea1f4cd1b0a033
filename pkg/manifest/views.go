package manifest

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version returns the version of the newest changelog entry.
func (m *Manifest) Version() (*semver.Version, error) {
	entries, err := m.Changelog()
	if err != nil || len(entries) == 0 {
		return nil, ErrNoVersion
	}
	last := entries[len(entries)-1].Version
	v, err := semver.NewVersion(last)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: version %q: %w", m.location.Key(), last, err)
	}
	return v, nil
}

// Created returns the date of the oldest changelog entry.
func (m *Manifest) Created() (Date, bool) {
	entries, err := m.Changelog()
	if err != nil || len(entries) == 0 {
		return Date{}, false
	}
	return entries[0].Date, !entries[0].Date.IsZero()
}

// Updated returns the date of the newest changelog entry.
func (m *Manifest) Updated() (Date, bool) {
	entries, err := m.Changelog()
	if err != nil || len(entries) == 0 {
		return Date{}, false
	}
	d := entries[len(entries)-1].Date
	return d, !d.IsZero()
}

// Contributors returns the authors, then the maintainers, then changelog
// authors, each tag listed once.
func (m *Manifest) Contributors() (AuthorList, error) {
	authors, err := m.Authors()
	if err != nil {
		return AuthorList{}, err
	}
	maintainers, err := m.Maintainers()
	if err != nil {
		return AuthorList{}, err
	}
	out := authors.merge(maintainers.All()...)
	if entries, err := m.Changelog(); err == nil {
		for _, e := range entries {
			out = out.merge(e.Author)
		}
	}
	return out, nil
}

// Doc renders a one-paragraph summary of the resolved manifest.
func (m *Manifest) Doc() string {
	var parts []string
	if d, err := m.Description(); err == nil && d != "" {
		parts = append(parts, strings.TrimSuffix(d, "."))
	}
	if v, err := m.Version(); err == nil {
		parts = append(parts, "Version: "+v.Original())
	}
	if a, err := m.Authors(); err == nil && a.Len() > 0 {
		parts = append(parts, "Authors: "+strings.Join(a.Names(), ", "))
	}
	if mt, err := m.Maintainers(); err == nil && mt.Len() > 0 {
		parts = append(parts, "Maintainers: "+strings.Join(mt.Names(), ", "))
	}
	parts = append(parts, "License: "+m.License().Name)
	return strings.Join(parts, ". ") + "."
}
