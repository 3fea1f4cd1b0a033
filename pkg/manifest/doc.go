// Package manifest defines the metadata record attached to a code unit
// (package, module, class or function) and the rules for resolving its
// fields through a chain of parent manifests.
//
// A manifest stores only the fields that were set on it explicitly. Every
// other field is resolved at read time by walking the parent chain up to
// the project-root manifest, so a child always observes the current value
// of an inherited field. The license field never fails to resolve: when no
// manifest in the chain names one, resolution yields Unspecified.
package manifest
