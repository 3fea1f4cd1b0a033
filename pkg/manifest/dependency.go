package manifest

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// DependencyType is the ecosystem a dependency is resolved from.
type DependencyType string

// Common ecosystems. Other non-empty tags are accepted.
const (
	DependencyGo     DependencyType = "go"
	DependencyPip    DependencyType = "pip"
	DependencyNPM    DependencyType = "npm"
	DependencyPylium DependencyType = "pylium"
)

// DependencyCategory says when a dependency is needed.
type DependencyCategory string

// Dependency categories.
const (
	CategoryBuild       DependencyCategory = "build"
	CategoryRuntime     DependencyCategory = "runtime"
	CategoryAutomatic   DependencyCategory = "automatic"
	CategoryDevelopment DependencyCategory = "development"
)

var categoryDescriptions = map[DependencyCategory]string{
	CategoryBuild:       "Required for building the package",
	CategoryRuntime:     "Required for running the package (minimal set)",
	CategoryAutomatic:   "Will be added automatically by the system if required",
	CategoryDevelopment: "Only needed for development/testing (optional)",
}

// Valid reports whether c is a known category. The empty category is valid
// and means CategoryAutomatic.
func (c DependencyCategory) Valid() bool {
	_, ok := categoryDescriptions[c]
	return ok || c == ""
}

// Description explains the category.
func (c DependencyCategory) Description() string {
	if c == "" {
		c = CategoryAutomatic
	}
	return categoryDescriptions[c]
}

// Dependency declares another unit the owner of a manifest relies on.
// Version is a constraint such as ">= 1.2, < 2".
type Dependency struct {
	Type     DependencyType
	Name     string
	Version  string
	Category DependencyCategory
}

// ErrNoConstraint indicates a dependency without a version constraint.
var ErrNoConstraint = errors.New("dependency has no version constraint")

// Constraint parses Version as a semantic version constraint.
func (d Dependency) Constraint() (*semver.Constraints, error) {
	if d.Version == "" {
		return nil, ErrNoConstraint
	}
	c, err := semver.NewConstraint(d.Version)
	if err != nil {
		return nil, fmt.Errorf("dependency %s: constraint %q: %w", d.Name, d.Version, err)
	}
	return c, nil
}

// Satisfies reports whether version meets the dependency's constraint.
// A dependency without a constraint accepts any parseable version.
func (d Dependency) Satisfies(version string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("dependency %s: version %q: %w", d.Name, version, err)
	}
	c, err := d.Constraint()
	if errors.Is(err, ErrNoConstraint) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}

// String renders "name (constraint) [type]".
func (d Dependency) String() string {
	s := d.Name
	if d.Version != "" {
		s += " (" + d.Version + ")"
	}
	if d.Type != "" {
		s += " [" + string(d.Type) + "]"
	}
	return s
}

func (d Dependency) validate() error {
	if d.Name == "" {
		return errors.New("dependency has no name")
	}
	if d.Type == "" {
		return fmt.Errorf("dependency %s has no ecosystem type", d.Name)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("dependency %s has unknown category %q", d.Name, d.Category)
	}
	return nil
}
