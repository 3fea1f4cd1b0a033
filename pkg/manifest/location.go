package manifest

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// implSuffixes are stripped by ShortName so that a header or implementation
// module reports the name of the module it belongs to.
var implSuffixes = []string{".__header__", ".__impl__", "_h", "_impl"}

// Location identifies the code unit that owns a manifest. Module is the
// module or package path; Class is an optional qualified class name inside
// that module; Func is an optional function or method name.
type Location struct {
	Module  string
	Class   string
	Func    string
	Package bool // Module names a package rather than a single source file
}

// ModuleAt returns the location of a module.
func ModuleAt(module string) Location {
	return Location{Module: module}
}

// PackageAt returns the location of a package.
func PackageAt(module string) Location {
	return Location{Module: module, Package: true}
}

// ClassAt returns the location of a class inside module.
func ClassAt(module, class string) Location {
	return Location{Module: module, Class: class}
}

// FuncAt returns the location of a function, or of a method when class is
// non-empty.
func FuncAt(module, class, fn string) Location {
	return Location{Module: module, Class: class, Func: fn}
}

// ParseLocation parses the key form produced by Key: "module",
// "module:Class", "module:Class#method" or "module#func". A trailing "/"
// on the module marks a package.
func ParseLocation(s string) (Location, error) {
	var loc Location
	rest := s
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		loc.Func = rest[i+1:]
		rest = rest[:i]
		if loc.Func == "" {
			return Location{}, &ValidationError{Location: s, Field: "location.func", Err: errors.New("empty function name")}
		}
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		loc.Class = rest[i+1:]
		rest = rest[:i]
		if loc.Class == "" {
			return Location{}, &ValidationError{Location: s, Field: "location.class", Err: errors.New("empty class name")}
		}
	}
	if strings.HasSuffix(rest, "/") {
		loc.Package = true
		rest = strings.TrimSuffix(rest, "/")
	}
	loc.Module = rest
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// Validate checks that the location names a module container and that each
// name segment is well formed.
func (l Location) Validate() error {
	if l.Module == "" {
		if l.Class != "" || l.Func != "" {
			return &ValidationError{Field: "location", Err: errors.New("class or function location has no module container")}
		}
		return &ValidationError{Field: "location", Err: errors.New("module path is empty")}
	}
	if err := checkModulePath(l.Module); err != nil {
		return &ValidationError{Location: l.Module, Field: "location.module", Err: err}
	}
	if l.Package && (l.Class != "" || l.Func != "") {
		return &ValidationError{Location: l.Module, Field: "location", Err: errors.New("package location cannot name a class or function")}
	}
	if l.Class != "" {
		if err := checkQualName(l.Class); err != nil {
			return &ValidationError{Location: l.Module, Field: "location.class", Err: err}
		}
	}
	if l.Func != "" {
		if !isIdentifier(l.Func) {
			return &ValidationError{Location: l.Module, Field: "location.func", Err: fmt.Errorf("%q is not an identifier", l.Func)}
		}
	}
	return nil
}

// checkModulePath accepts dotted module names and slash-separated import
// paths. Segments must be non-empty and free of whitespace and separators
// used by Key.
func checkModulePath(path string) error {
	segs := strings.FieldsFunc(path, func(r rune) bool { return r == '.' || r == '/' })
	if len(segs) == 0 || strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") ||
		strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") ||
		strings.Contains(path, "..") || strings.Contains(path, "//") {
		return fmt.Errorf("%q has an empty path segment", path)
	}
	for _, r := range path {
		if unicode.IsSpace(r) || r == ':' || r == '#' {
			return fmt.Errorf("%q contains %q", path, r)
		}
	}
	return nil
}

func checkQualName(name string) error {
	for _, seg := range strings.Split(name, ".") {
		if !isIdentifier(seg) {
			return fmt.Errorf("%q is not a qualified name", name)
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// Key returns the registry key of the location. ParseLocation(l.Key())
// returns l.
func (l Location) Key() string {
	var b strings.Builder
	b.WriteString(l.Module)
	if l.Package {
		b.WriteByte('/')
	}
	if l.Class != "" {
		b.WriteByte(':')
		b.WriteString(l.Class)
	}
	if l.Func != "" {
		b.WriteByte('#')
		b.WriteString(l.Func)
	}
	return b.String()
}

// String returns the Key.
func (l Location) String() string {
	return l.Key()
}

// FQN returns the dotted fully qualified name, e.g. "pkg.mod.Class.method".
func (l Location) FQN() string {
	return joinNonEmpty(".", l.Module, l.Class, l.Func)
}

// ShortName returns the module name with implementation suffixes removed.
func (l Location) ShortName() string {
	for _, s := range implSuffixes {
		if strings.HasSuffix(l.Module, s) {
			return strings.TrimSuffix(l.Module, s)
		}
	}
	return l.Module
}

// ShortFQN is FQN built on ShortName.
func (l Location) ShortFQN() string {
	return joinNonEmpty(".", l.ShortName(), l.Class, l.Func)
}

// LocalName returns the last name segment of the unit itself.
func (l Location) LocalName() string {
	switch {
	case l.Func != "":
		return l.Func
	case l.Class != "":
		return l.Class
	}
	short := l.ShortName()
	if i := strings.LastIndexAny(short, "./"); i >= 0 {
		return short[i+1:]
	}
	return short
}

// Container returns the module-level location enclosing l.
func (l Location) Container() Location {
	return Location{Module: l.Module, Package: l.Package && l.Class == "" && l.Func == ""}
}

// IsModule reports whether the location names a module or package.
func (l Location) IsModule() bool {
	return l.Class == "" && l.Func == ""
}

// IsClass reports whether the location names a class.
func (l Location) IsClass() bool {
	return l.Class != "" && l.Func == ""
}

// IsFunction reports whether the location names a function or method.
func (l Location) IsFunction() bool {
	return l.Func != ""
}

// IsMethod reports whether the location names a method of a class.
func (l Location) IsMethod() bool {
	return l.Func != "" && l.Class != ""
}

// ObjectType classifies the location.
func (l Location) ObjectType() ObjectType {
	switch {
	case l.Module == "":
		return ObjectInvalid
	case l.IsMethod():
		return ObjectMethod
	case l.IsFunction():
		return ObjectFunction
	case l.IsClass():
		return ObjectClass
	case l.Package:
		return ObjectPackage
	default:
		return ObjectModule
	}
}

// Contains reports whether other is nested inside l, either directly or
// transitively.
func (l Location) Contains(other Location) bool {
	if l == other {
		return false
	}
	switch l.ObjectType() {
	case ObjectPackage:
		if other.Module == l.Module {
			return !other.IsModule()
		}
		return strings.HasPrefix(other.Module, l.Module) &&
			strings.ContainsRune("./", rune(other.Module[len(l.Module)]))
	case ObjectModule:
		return other.Module == l.Module && !other.IsModule()
	case ObjectClass:
		return other.Module == l.Module && other.Class == l.Class && other.Func != ""
	}
	return false
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
