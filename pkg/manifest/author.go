package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// Author identifies a person credited on a manifest. Tag is the short handle
// used to look the author up in an AuthorList.
type Author struct {
	Tag          string
	Name         string
	Email        string
	Company      string
	SinceVersion string
	SinceDate    Date
}

// Since returns a copy of a with the version and date from which the author
// contributed.
func (a Author) Since(version string, date Date) Author {
	a.SinceVersion = version
	a.SinceDate = date
	return a
}

// String renders the author as "Name <email> (Company)".
func (a Author) String() string {
	var b strings.Builder
	b.WriteString(a.Name)
	if a.Email != "" {
		b.WriteString(" <" + a.Email + ">")
	}
	if a.Company != "" {
		b.WriteString(" (" + a.Company + ")")
	}
	return b.String()
}

// AuthorList is an ordered list of authors whose tags are unique.
// The zero AuthorList is empty and valid.
type AuthorList struct {
	authors []Author
}

// NewAuthorList builds an AuthorList, failing with a ValidationError when a
// tag is empty or repeated.
func NewAuthorList(authors ...Author) (AuthorList, error) {
	seen := make(map[string]bool, len(authors))
	for i, a := range authors {
		if a.Tag == "" {
			return AuthorList{}, &ValidationError{Field: "authors", Err: fmt.Errorf("author %d (%s) has an empty tag", i, a.Name)}
		}
		if seen[a.Tag] {
			return AuthorList{}, &ValidationError{Field: "authors", Err: fmt.Errorf("duplicate author tag %q", a.Tag)}
		}
		seen[a.Tag] = true
	}
	return AuthorList{authors: append([]Author(nil), authors...)}, nil
}

// MustAuthorList is NewAuthorList for static declarations; it panics on error.
func MustAuthorList(authors ...Author) AuthorList {
	l, err := NewAuthorList(authors...)
	if err != nil {
		panic(err)
	}
	return l
}

// ByTag returns the author with the given tag, or ErrAuthorNotFound.
func (l AuthorList) ByTag(tag string) (Author, error) {
	for _, a := range l.authors {
		if a.Tag == tag {
			return a, nil
		}
	}
	return Author{}, fmt.Errorf("%w: %q", ErrAuthorNotFound, tag)
}

// Has reports whether an author with the given tag is in the list.
func (l AuthorList) Has(tag string) bool {
	_, err := l.ByTag(tag)
	return !errors.Is(err, ErrAuthorNotFound)
}

// Len returns the number of authors.
func (l AuthorList) Len() int {
	return len(l.authors)
}

// At returns the i-th author.
func (l AuthorList) At(i int) Author {
	return l.authors[i]
}

// First returns the first author, if any.
func (l AuthorList) First() (Author, bool) {
	if len(l.authors) == 0 {
		return Author{}, false
	}
	return l.authors[0], true
}

// All returns a copy of the authors in order.
func (l AuthorList) All() []Author {
	return append([]Author(nil), l.authors...)
}

// Tags returns the author tags in order.
func (l AuthorList) Tags() []string {
	tags := make([]string, len(l.authors))
	for i, a := range l.authors {
		tags[i] = a.Tag
	}
	return tags
}

// Names returns the author names in order.
func (l AuthorList) Names() []string {
	names := make([]string, len(l.authors))
	for i, a := range l.authors {
		names[i] = a.Name
	}
	return names
}

// Equal reports whether both lists hold the same authors in the same order.
func (l AuthorList) Equal(o AuthorList) bool {
	if len(l.authors) != len(o.authors) {
		return false
	}
	for i := range l.authors {
		if l.authors[i] != o.authors[i] {
			return false
		}
	}
	return true
}

// merge appends authors from o whose tags are not yet present.
func (l AuthorList) merge(o ...Author) AuthorList {
	out := AuthorList{authors: l.All()}
	for _, a := range o {
		if a.Tag != "" && !out.Has(a.Tag) {
			out.authors = append(out.authors, a)
		}
	}
	return out
}
