package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
)

const modulePath = "github.com/papapumpkin/manifest"

// sourceRoots are the directories whose packages the architecture tests
// cover, relative to the repository root.
var sourceRoots = []string{"pkg", "internal"}

var excludedPkgs = map[string]bool{
	"internal/arch_test": true,
}

// repoRoot caches the resolved repository root directory.
var (
	repoRootOnce sync.Once
	repoRootPath string
)

// repoRoot returns the absolute path to the repository root by walking up
// from this test file's directory until go.mod is found.
func repoRoot(t *testing.T) string {
	t.Helper()
	repoRootOnce.Do(func() {
		_, thisFile, _, ok := runtime.Caller(0)
		if !ok {
			t.Fatal("runtime.Caller failed")
		}
		dir := filepath.Dir(thisFile)
		for {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				repoRootPath = dir
				return
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				t.Fatal("could not find go.mod in any parent directory")
			}
			dir = parent
		}
	})
	if repoRootPath == "" {
		t.Fatal("repoRoot not resolved")
	}
	return repoRootPath
}

// pkgDir returns the absolute directory of a package given as a path
// relative to the repository root (e.g. "pkg/registry").
func pkgDir(t *testing.T, pkg string) string {
	t.Helper()
	return filepath.Join(repoRoot(t), filepath.FromSlash(pkg))
}

// exportedSymbol describes an exported declaration in a Go file.
type exportedSymbol struct {
	Name    string
	Kind    string // "type", "func", "method", "var", "const"
	DocText string // raw doc comment text, empty if missing
	Line    int
	Grouped bool // declared inside a parenthesized block of several specs
}

// modulePackages returns the packages under pkg/ and internal/ as
// repository-relative paths, excluding arch_test itself.
func modulePackages(t *testing.T) []string {
	t.Helper()

	var pkgs []string
	for _, root := range sourceRoots {
		dir := filepath.Join(repoRoot(t), root)
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("reading %s: %v", dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := root + "/" + e.Name()
			if excludedPkgs[name] {
				continue
			}
			// Only include directories that contain at least one .go file.
			if len(goFilesIn(t, filepath.Join(dir, e.Name()))) > 0 {
				pkgs = append(pkgs, name)
			}
		}
	}
	sort.Strings(pkgs)
	return pkgs
}

// goFilesIn returns all non-test .go files in the given directory.
func goFilesIn(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading directory %s: %v", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files
}

// importsOf parses all non-test Go files in dir and returns the
// deduplicated module packages they import, as repository-relative paths.
func importsOf(t *testing.T, dir string) []string {
	t.Helper()

	seen := make(map[string]bool)
	fset := token.NewFileSet()
	for _, f := range goFilesIn(t, dir) {
		node, err := parser.ParseFile(fset, f, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parsing imports in %s: %v", f, err)
		}
		for _, imp := range node.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			if rel, ok := strings.CutPrefix(path, modulePath+"/"); ok {
				seen[rel] = true
			}
		}
	}

	result := make([]string, 0, len(seen))
	for pkg := range seen {
		result = append(result, pkg)
	}
	sort.Strings(result)
	return result
}

// lineCount returns the number of lines in the file at filePath.
func lineCount(t *testing.T, filePath string) int {
	t.Helper()

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("reading %s: %v", filePath, err)
	}
	if len(data) == 0 {
		return 0
	}
	count := strings.Count(string(data), "\n")
	if data[len(data)-1] != '\n' {
		count++
	}
	return count
}

// exportedSymbols parses a Go file and returns all exported declarations
// (types, functions, methods, vars, consts) with their doc comments. Methods
// on unexported receivers are not part of the API and are skipped. In a
// grouped const or var block the block comment or a trailing line comment
// counts as documentation.
func exportedSymbols(t *testing.T, filePath string) []exportedSymbol {
	t.Helper()

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filePath, nil, parser.ParseComments)
	if err != nil {
		t.Fatalf("parsing %s: %v", filePath, err)
	}
	line := func(p token.Pos) int { return fset.Position(p).Line }

	var syms []exportedSymbol
	for _, decl := range node.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			grouped := len(d.Specs) > 1
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					if s.Name.IsExported() {
						syms = append(syms, exportedSymbol{Name: s.Name.Name, Kind: "type", DocText: docText(s.Doc, d.Doc), Line: line(s.Pos()), Grouped: grouped})
					}
				case *ast.ValueSpec:
					kind := "var"
					if d.Tok == token.CONST {
						kind = "const"
					}
					doc := docText(s.Doc, d.Doc)
					if grouped {
						doc = docText(s.Doc, d.Doc, s.Comment)
					}
					for _, name := range s.Names {
						if name.IsExported() {
							syms = append(syms, exportedSymbol{Name: name.Name, Kind: kind, DocText: doc, Line: line(name.Pos()), Grouped: grouped})
						}
					}
				}
			}
		case *ast.FuncDecl:
			if !d.Name.IsExported() {
				continue
			}
			kind := "func"
			if d.Recv != nil {
				if !isExportedReceiver(d.Recv) {
					continue
				}
				kind = "method"
			}
			syms = append(syms, exportedSymbol{Name: d.Name.Name, Kind: kind, DocText: docText(d.Doc), Line: line(d.Pos())})
		}
	}
	return syms
}

// isExportedReceiver reports whether the method's receiver type is exported.
func isExportedReceiver(recv *ast.FieldList) bool {
	if recv == nil || len(recv.List) == 0 {
		return false
	}
	expr := recv.List[0].Type
	for {
		switch t := expr.(type) {
		case *ast.Ident:
			return t.IsExported()
		case *ast.StarExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		default:
			return false
		}
	}
}

// docText returns the text of the first non-empty comment group.
func docText(groups ...*ast.CommentGroup) string {
	for _, g := range groups {
		if g != nil && strings.TrimSpace(g.Text()) != "" {
			return g.Text()
		}
	}
	return ""
}
// --- Sanity tests for the helpers themselves ---

func TestModulePackages(t *testing.T) {
	t.Parallel()

	pkgs := modulePackages(t)
	known := map[string]bool{
		"pkg/manifest":       false,
		"pkg/registry":       false,
		"pkg/codec":          false,
		"internal/telemetry": false,
	}
	for _, p := range pkgs {
		if p == "internal/arch_test" {
			t.Error("modulePackages should exclude internal/arch_test")
		}
		if _, ok := known[p]; ok {
			known[p] = true
		}
	}
	for pkg, found := range known {
		if !found {
			t.Errorf("expected package %q in modulePackages result %v", pkg, pkgs)
		}
	}
}

func TestImportsOf(t *testing.T) {
	t.Parallel()

	imports := importsOf(t, pkgDir(t, "pkg/registry"))
	want := map[string]bool{"pkg/manifest": false, "internal/telemetry": false}
	for _, imp := range imports {
		if _, ok := want[imp]; ok {
			want[imp] = true
		}
	}
	for pkg, found := range want {
		if !found {
			t.Errorf("expected pkg/registry to import %q, got %v", pkg, imports)
		}
	}
}

func TestExportedSymbols(t *testing.T) {
	t.Parallel()

	var names []string
	for _, f := range goFilesIn(t, pkgDir(t, "pkg/registry")) {
		for _, sym := range exportedSymbols(t, f) {
			names = append(names, sym.Kind+" "+sym.Name)
		}
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"type Registry", "func New", "method Register"} {
		if !strings.Contains(joined, want) {
			t.Errorf("exportedSymbols(pkg/registry) missing %q: %v", want, names)
		}
	}
}

func TestLineCount(t *testing.T) {
	t.Parallel()

	count := lineCount(t, filepath.Join(pkgDir(t, "internal/arch_test"), "helpers_test.go"))
	if count < 50 {
		t.Errorf("expected helpers_test.go to have at least 50 lines, got %d", count)
	}
}
