package manifest

import (
	"errors"
	"fmt"
)

// Field names a manifest field for name-based resolution and serialization.
type Field string

// Manifest fields.
const (
	FieldDescription   Field = "description"
	FieldAuthors       Field = "authors"
	FieldMaintainers   Field = "maintainers"
	FieldCopyright     Field = "copyright"
	FieldLicense       Field = "license"
	FieldStatus        Field = "status"
	FieldDependencies  Field = "dependencies"
	FieldChangelog     Field = "changelog"
	FieldThreadSafety  Field = "thread_safety"
	FieldAccessMode    Field = "access_mode"
	FieldFrontend      Field = "frontend"
	FieldBackend       Field = "backend"
	FieldAIAccessLevel Field = "ai_access_level"
)

// AllFields lists every field in declaration order.
var AllFields = []Field{
	FieldDescription, FieldAuthors, FieldMaintainers, FieldCopyright, FieldLicense,
	FieldStatus, FieldDependencies, FieldChangelog, FieldThreadSafety, FieldAccessMode,
	FieldFrontend, FieldBackend, FieldAIAccessLevel,
}

// ParseField converts a field name to a Field.
func ParseField(s string) (Field, error) {
	for _, f := range AllFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Fields is the explicit record stored on a manifest. An unset Value defers
// to the parent chain.
type Fields struct {
	Description   Value[string]
	Authors       Value[AuthorList]
	Maintainers   Value[AuthorList]
	Copyright     Value[Copyright]
	License       Value[License]
	Status        Value[Status]
	Dependencies  Value[[]Dependency]
	Changelog     Value[[]ChangelogEntry]
	ThreadSafety  Value[ThreadSafety]
	AccessMode    Value[AccessMode]
	Frontend      Value[Frontend]
	Backend       Value[Backend]
	AIAccessLevel Value[AIAccessLevel]
}

// IsSet reports whether field is set explicitly in f.
func (f *Fields) IsSet(field Field) bool {
	switch field {
	case FieldDescription:
		return f.Description.IsSet()
	case FieldAuthors:
		return f.Authors.IsSet()
	case FieldMaintainers:
		return f.Maintainers.IsSet()
	case FieldCopyright:
		return f.Copyright.IsSet()
	case FieldLicense:
		return f.License.IsSet()
	case FieldStatus:
		return f.Status.IsSet()
	case FieldDependencies:
		return f.Dependencies.IsSet()
	case FieldChangelog:
		return f.Changelog.IsSet()
	case FieldThreadSafety:
		return f.ThreadSafety.IsSet()
	case FieldAccessMode:
		return f.AccessMode.IsSet()
	case FieldFrontend:
		return f.Frontend.IsSet()
	case FieldBackend:
		return f.Backend.IsSet()
	case FieldAIAccessLevel:
		return f.AIAccessLevel.IsSet()
	}
	return false
}

// SetFields returns the fields set explicitly in f, in AllFields order.
func (f *Fields) SetFields() []Field {
	var out []Field
	for _, field := range AllFields {
		if f.IsSet(field) {
			out = append(out, field)
		}
	}
	return out
}

// clone copies f so that slices are not shared with the caller.
func (f Fields) clone() Fields {
	if deps, ok := f.Dependencies.Get(); ok {
		f.Dependencies = Set(append([]Dependency(nil), deps...))
	}
	if log, ok := f.Changelog.Get(); ok {
		f.Changelog = Set(cloneChangelog(log))
	}
	return f
}

// validate checks values that Fields can hold but a manifest must reject.
// Cross-manifest rules (maintainers against inherited authors) are checked
// by the manifest.
func (f *Fields) validate(loc Location) error {
	if v, ok := f.License.Get(); ok {
		if err := v.validate(); err != nil {
			return invalid(loc, string(FieldLicense), err)
		}
	}
	if v, ok := f.Status.Get(); ok && !v.Valid() {
		return invalid(loc, string(FieldStatus), fmt.Errorf("unknown status %q", v))
	}
	if v, ok := f.ThreadSafety.Get(); ok && !v.Valid() {
		return invalid(loc, string(FieldThreadSafety), fmt.Errorf("unknown thread safety %q", v))
	}
	if v, ok := f.AccessMode.Get(); ok && !v.Valid() {
		return invalid(loc, string(FieldAccessMode), fmt.Errorf("unknown access mode %q", v))
	}
	if v, ok := f.Frontend.Get(); ok && !v.Valid() {
		return invalid(loc, string(FieldFrontend), fmt.Errorf("value %s is outside the frontend flag set", v))
	}
	if v, ok := f.Backend.Get(); ok && !v.Valid() {
		return invalid(loc, string(FieldBackend), fmt.Errorf("value %s is outside the backend flag set", v))
	}
	if v, ok := f.AIAccessLevel.Get(); ok && !v.Valid() {
		return invalid(loc, string(FieldAIAccessLevel), fmt.Errorf("value %s is outside the AI access flag set", v))
	}
	if deps, ok := f.Dependencies.Get(); ok {
		for i, d := range deps {
			if err := d.validate(); err != nil {
				return invalid(loc, fmt.Sprintf("%s[%d]", FieldDependencies, i), err)
			}
		}
	}
	if entries, ok := f.Changelog.Get(); ok {
		for i, e := range entries {
			if e.Version == "" {
				return invalid(loc, fmt.Sprintf("%s[%d]", FieldChangelog, i), errors.New("entry has no version"))
			}
		}
	}
	return nil
}
