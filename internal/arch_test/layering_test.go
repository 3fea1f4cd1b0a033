package arch_test

import (
	"testing"
)

// layers assigns each package to a numeric layer. Lower layers are more
// foundational; a package at layer N may only import packages at layer N or
// below.
var layers = map[string]int{
	"pkg/manifest":       0,
	"internal/telemetry": 0,
	"internal/logging":   0,
	"pkg/config":         0,

	"pkg/registry": 1,
	"pkg/codec":    1,

	"pkg/catalog": 2,

	"pkg/loader": 3,
}

// TestDependencyLayering verifies that no package imports a package from a
// higher layer, and that the model package imports nothing from the module.
func TestDependencyLayering(t *testing.T) {
	t.Parallel()

	for _, pkg := range modulePackages(t) {
		importerLayer, ok := layers[pkg]
		if !ok {
			// Unknown packages are caught by TestNoUnknownPackages.
			continue
		}

		for _, imp := range importsOf(t, pkgDir(t, pkg)) {
			importedLayer, ok := layers[imp]
			if !ok {
				continue
			}
			if importerLayer < importedLayer {
				t.Errorf("layer violation: %s (layer %d) imports %s (layer %d)",
					pkg, importerLayer, imp, importedLayer)
			}
		}
	}

	if imports := importsOf(t, pkgDir(t, "pkg/manifest")); len(imports) != 0 {
		t.Errorf("pkg/manifest must not import module packages, got %v", imports)
	}
}

// TestNoUnknownPackages verifies that every package has an assigned layer.
func TestNoUnknownPackages(t *testing.T) {
	t.Parallel()

	for _, pkg := range modulePackages(t) {
		if _, ok := layers[pkg]; !ok {
			t.Errorf("package %s has no layer assignment; add it to the layers map", pkg)
		}
	}
}
