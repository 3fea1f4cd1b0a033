package manifest

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

// testRoot creates a project-root manifest at "proj" and fails the test on error.
func testRoot(t *testing.T, f Fields) *Manifest {
	t.Helper()
	root, err := NewRoot(PackageAt("proj"), f)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	return root
}

// testChild creates a child of parent and fails the test on error.
func testChild(t *testing.T, parent *Manifest, loc Location, f Fields) *Manifest {
	t.Helper()
	child, err := parent.CreateChild(loc, f)
	if err != nil {
		t.Fatalf("CreateChild(%s): %v", loc, err)
	}
	return child
}

var rr = Author{Tag: "rr", Name: "Rico R", Email: "rr@example.com"}

func TestResolveOverrideOrParent(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{
		Description:   Set("project"),
		Status:        Set(StatusStable),
		ThreadSafety:  Set(ThreadSafe),
		AccessMode:    Set(AccessHybrid),
		Frontend:      Set(FrontendCLI | FrontendAPI),
		Backend:       Set(BackendSQLite),
		AIAccessLevel: Set(AIRead | AISuggestOnly),
		License:       Set(MIT),
	})
	child := testChild(t, root, ModuleAt("proj.core"), Fields{
		Description: Set("core"),
		Status:      Set(StatusDeprecated),
		Backend:     Set(BackendFile),
	})

	for _, field := range AllFields {
		t.Run(string(field), func(t *testing.T) {
			t.Parallel()
			got, err := child.Resolve(field)
			if err != nil {
				t.Fatalf("child.Resolve(%s): %v", field, err)
			}
			var want any
			if child.IsSet(field) {
				want, _ = child.Resolve(field)
			} else {
				want, err = root.Resolve(field)
				if err != nil {
					t.Fatalf("root.Resolve(%s): %v", field, err)
				}
			}
			if !equalResolved(got, want) {
				t.Errorf("Resolve(%s) = %v, want %v", field, got, want)
			}
		})
	}

	if got, _ := child.Status(); got != StatusDeprecated {
		t.Errorf("Status() = %q, want override %q", got, StatusDeprecated)
	}
	if got, _ := child.ThreadSafety(); got != ThreadSafe {
		t.Errorf("ThreadSafety() = %q, want inherited %q", got, ThreadSafe)
	}
}

func equalResolved(a, b any) bool {
	switch av := a.(type) {
	case AuthorList:
		return av.Equal(b.(AuthorList))
	case []Dependency:
		bv := b.([]Dependency)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case []ChangelogEntry:
		return len(av) == len(b.([]ChangelogEntry))
	}
	return a == b
}

func TestNewDetectsCycle(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{})
	mid := testChild(t, root, ModuleAt("proj.a"), Fields{})
	leaf := testChild(t, mid, ModuleAt("proj.a.b"), Fields{})

	tests := []struct {
		name     string
		loc      Location
		parent   *Manifest
		wantPath string
	}{
		{"depth 1 parent is self", ModuleAt("proj.a.b"), leaf, "proj.a.b -> proj.a.b"},
		{"depth 2 grandparent is self", ModuleAt("proj.a"), leaf, "proj.a -> proj.a.b -> proj.a"},
		{"depth 3 root is self", PackageAt("proj"), leaf, "proj/ -> proj.a.b -> proj.a -> proj/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.loc, Fields{}, WithParent(tt.parent))
			if !errors.Is(err, ErrCycle) {
				t.Fatalf("New() error = %v, want ErrCycle", err)
			}
			var ce *CycleError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not *CycleError", err)
			}
			if got := strings.Join(ce.Path, " -> "); got != tt.wantPath {
				t.Errorf("cycle path = %q, want %q", got, tt.wantPath)
			}
		})
	}
}

func TestCreateChildTracksParentUpdates(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{Status: Set(StatusDevelopment)})
	inherited := testChild(t, root, ModuleAt("proj.inherited"), Fields{})
	pinned := testChild(t, root, ModuleAt("proj.pinned"), Fields{Status: Set(StatusDevelopment)})

	if inherited.IsSet(FieldStatus) {
		t.Fatal("child created without overrides stores status")
	}
	if !pinned.IsSet(FieldStatus) {
		t.Fatal("child with explicit override does not store status")
	}

	if err := root.Update(func(f *Fields) { f.Status = Set(StatusStable) }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got, _ := inherited.Status(); got != StatusStable {
		t.Errorf("inherited Status() = %q, want %q after parent update", got, StatusStable)
	}
	if got, _ := pinned.Status(); got != StatusDevelopment {
		t.Errorf("pinned Status() = %q, want %q after parent update", got, StatusDevelopment)
	}
}

func TestCreateChildDoesNotMutateParent(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{Description: Set("root")})
	before := root.Fields()
	testChild(t, root, ModuleAt("proj.x"), Fields{Description: Set("x"), License: Set(GPL3Only)})

	after := root.Fields()
	if d, _ := after.Description.Get(); d != "root" {
		t.Errorf("parent description = %q, want %q", d, "root")
	}
	if before.License.IsSet() != after.License.IsSet() {
		t.Error("CreateChild changed the parent's license")
	}
}

func TestLicenseResolution(t *testing.T) {
	t.Parallel()

	t.Run("no license anywhere resolves to unspecified", func(t *testing.T) {
		t.Parallel()
		root := testRoot(t, Fields{})
		mid := testChild(t, root, ModuleAt("proj.mid"), Fields{})
		leaf := testChild(t, mid, ClassAt("proj.mid", "Leaf"), Fields{})

		for _, m := range []*Manifest{root, mid, leaf} {
			if got := m.License(); !got.IsUnspecified() {
				t.Errorf("%s License() = %v, want Unspecified", m.Location(), got)
			}
			v, err := m.Resolve(FieldLicense)
			if err != nil {
				t.Errorf("%s Resolve(license) error = %v, want nil", m.Location(), err)
			}
			if v.(License) != Unspecified {
				t.Errorf("%s Resolve(license) = %v, want Unspecified", m.Location(), v)
			}
		}
	})

	t.Run("root license reaches every descendant", func(t *testing.T) {
		t.Parallel()
		root := testRoot(t, Fields{License: Set(Apache2)})
		mid := testChild(t, root, ModuleAt("proj.mid"), Fields{})
		leaf := testChild(t, mid, FuncAt("proj.mid", "Leaf", "run"), Fields{})

		for _, m := range []*Manifest{mid, leaf} {
			if got := m.License(); got.SPDX != "Apache-2.0" {
				t.Errorf("%s License() = %v, want Apache-2.0", m.Location(), got)
			}
			if src := m.Source(FieldLicense); src != root {
				t.Errorf("%s license source = %v, want root", m.Location(), src)
			}
		}
	})

	t.Run("parentless manifest without license", func(t *testing.T) {
		t.Parallel()
		m, err := New(ModuleAt("loose"), Fields{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if got := m.License(); got != Unspecified {
			t.Errorf("License() = %v, want Unspecified", got)
		}
	})
}

func TestFlagResolutionNearestWins(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{
		AIAccessLevel: Set(AIRead | AISuggestOnly),
		Frontend:      Set(FrontendCLI | FrontendAPI),
	})
	child := testChild(t, root, ModuleAt("proj.tool"), Fields{
		AIAccessLevel: Set(AIWrite),
		Frontend:      Set(NoFrontend),
	})
	grandchild := testChild(t, child, ClassAt("proj.tool", "Runner"), Fields{})

	for _, m := range []*Manifest{child, grandchild} {
		got, err := m.AIAccessLevel()
		if err != nil {
			t.Fatalf("AIAccessLevel: %v", err)
		}
		if got != AIWrite {
			t.Errorf("%s AIAccessLevel() = %v, want exactly %v", m.Location(), got, AIWrite)
		}
		if got.Has(AIRead) {
			t.Errorf("%s AIAccessLevel() gained read from an ancestor", m.Location())
		}

		fe, err := m.Frontend()
		if err != nil {
			t.Fatalf("Frontend: %v", err)
		}
		if fe != NoFrontend {
			t.Errorf("%s Frontend() = %v, want explicit none", m.Location(), fe)
		}
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{})

	tests := []struct {
		name    string
		loc     Location
		fields  Fields
		parent  *Manifest
		wantMsg string
	}{
		{
			name:    "empty module",
			loc:     Location{},
			wantMsg: "module path is empty",
		},
		{
			name:    "class without module container",
			loc:     Location{Class: "Orphan"},
			wantMsg: "no module container",
		},
		{
			name:    "malformed module path",
			loc:     ModuleAt("proj..core"),
			wantMsg: "empty path segment",
		},
		{
			name:    "maintainers without authors",
			loc:     ModuleAt("solo"),
			fields:  Fields{Maintainers: Set(MustAuthorList(rr))},
			wantMsg: `maintainer "rr"`,
		},
		{
			name:    "maintainers when inherited authors are empty",
			loc:     ModuleAt("proj.m"),
			parent:  root,
			fields:  Fields{Maintainers: Set(MustAuthorList(rr))},
			wantMsg: `maintainer "rr"`,
		},
		{
			name:    "frontend outside flag set",
			loc:     ModuleAt("proj.f"),
			fields:  Fields{Frontend: Set(Frontend(1 << 12))},
			wantMsg: "outside the frontend flag set",
		},
		{
			name:    "backend outside flag set",
			loc:     ModuleAt("proj.b"),
			fields:  Fields{Backend: Set(AllBackends | Backend(1<<15))},
			wantMsg: "outside the backend flag set",
		},
		{
			name:    "ai access outside flag set",
			loc:     ModuleAt("proj.ai"),
			fields:  Fields{AIAccessLevel: Set(AIAccessLevel(1 << 9))},
			wantMsg: "outside the AI access flag set",
		},
		{
			name:    "unknown status",
			loc:     ModuleAt("proj.s"),
			fields:  Fields{Status: Set(Status("retired"))},
			wantMsg: `unknown status "retired"`,
		},
		{
			name:    "unspecified license cannot be set",
			loc:     ModuleAt("proj.l"),
			fields:  Fields{License: Set(Unspecified)},
			wantMsg: "resolution floor",
		},
		{
			name:    "dependency without name",
			loc:     ModuleAt("proj.d"),
			fields:  Fields{Dependencies: Set([]Dependency{{Type: DependencyGo}})},
			wantMsg: "dependency has no name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var opts []Option
			if tt.parent != nil {
				opts = append(opts, WithParent(tt.parent))
			}
			_, err := New(tt.loc, tt.fields, opts...)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("New() error = %v, want ErrValidation", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error %T is not *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestMaintainersWithInheritedAuthors(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{Authors: Set(MustAuthorList(rr))})
	child, err := root.CreateChild(ModuleAt("proj.m"), Fields{Maintainers: Set(MustAuthorList(rr))})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	got, err := child.Maintainers()
	if err != nil {
		t.Fatalf("Maintainers: %v", err)
	}
	if got.Len() != 1 || got.At(0).Tag != "rr" {
		t.Errorf("Maintainers() = %v, want [rr]", got.Tags())
	}
}

func TestMaintainersDefaultToAuthors(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{Authors: Set(MustAuthorList(rr))})
	child := testChild(t, root, ModuleAt("proj.c"), Fields{})

	got, err := child.Maintainers()
	if err != nil {
		t.Fatalf("Maintainers: %v", err)
	}
	if !got.Equal(MustAuthorList(rr)) {
		t.Errorf("Maintainers() = %v, want authors [rr]", got.Tags())
	}
	if child.Source(FieldMaintainers) != nil {
		t.Error("Source(maintainers) should be nil when derived from authors")
	}
}

func TestUnresolvedField(t *testing.T) {
	t.Parallel()

	m, err := New(ModuleAt("standalone"), Fields{Description: Set("no root")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = m.Status()
	if !errors.Is(err, ErrUnresolvedField) {
		t.Fatalf("Status() error = %v, want ErrUnresolvedField", err)
	}
	var ue *UnresolvedFieldError
	if !errors.As(err, &ue) {
		t.Fatalf("error %T is not *UnresolvedFieldError", err)
	}
	if ue.Field != FieldStatus || ue.Location != "standalone" {
		t.Errorf("UnresolvedFieldError = %+v, want status at standalone", ue)
	}

	if _, err := m.Maintainers(); !errors.Is(err, ErrUnresolvedField) {
		t.Errorf("Maintainers() error = %v, want ErrUnresolvedField", err)
	}
	if _, err := m.Effective(); !errors.Is(err, ErrUnresolvedField) {
		t.Errorf("Effective() error = %v, want ErrUnresolvedField", err)
	}
	if d, err := m.Description(); err != nil || d != "no root" {
		t.Errorf("Description() = %q, %v; want explicit value", d, err)
	}
}

func TestResolveUnknownField(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{})
	if _, err := root.Resolve(Field("colour")); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Resolve(colour) error = %v, want ErrUnknownField", err)
	}
	if _, err := ParseField("colour"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("ParseField(colour) error = %v, want ErrUnknownField", err)
	}
	if f, err := ParseField("ai_access_level"); err != nil || f != FieldAIAccessLevel {
		t.Errorf("ParseField(ai_access_level) = %q, %v", f, err)
	}
}

func TestRootDefaults(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{})
	eff, err := root.Effective()
	if err != nil {
		t.Fatalf("Effective: %v", err)
	}
	if eff.Status != StatusDevelopment {
		t.Errorf("Status = %q, want %q", eff.Status, StatusDevelopment)
	}
	if eff.AIAccessLevel != AIRead {
		t.Errorf("AIAccessLevel = %v, want %v", eff.AIAccessLevel, AIRead)
	}
	if eff.ThreadSafety != ThreadUnsafe {
		t.Errorf("ThreadSafety = %q, want %q", eff.ThreadSafety, ThreadUnsafe)
	}
	if !eff.License.IsUnspecified() {
		t.Errorf("License = %v, want Unspecified", eff.License)
	}
	if root.IsSet(FieldLicense) {
		t.Error("root defaults must not set a license")
	}
	if !root.IsRoot() || root.Root() != root {
		t.Error("root manifest does not report itself as root")
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	t.Run("invalid update keeps previous record", func(t *testing.T) {
		t.Parallel()
		root := testRoot(t, Fields{AIAccessLevel: Set(AIRead)})
		err := root.Update(func(f *Fields) { f.AIAccessLevel = Set(AIAccessLevel(1 << 14)) })
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("Update() error = %v, want ErrValidation", err)
		}
		if got, _ := root.AIAccessLevel(); got != AIRead {
			t.Errorf("AIAccessLevel() = %v after rejected update, want %v", got, AIRead)
		}
	})

	t.Run("root cannot drop a default", func(t *testing.T) {
		t.Parallel()
		root := testRoot(t, Fields{})
		err := root.Update(func(f *Fields) { f.Status = Unset[Status]() })
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("Update() error = %v, want ErrValidation", err)
		}
	})

	t.Run("child can drop an override", func(t *testing.T) {
		t.Parallel()
		root := testRoot(t, Fields{Status: Set(StatusStable)})
		child := testChild(t, root, ModuleAt("proj.c"), Fields{Status: Set(StatusDeprecated)})
		if err := child.Update(func(f *Fields) { f.Status = Unset[Status]() }); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got, _ := child.Status(); got != StatusStable {
			t.Errorf("Status() = %q, want inherited %q", got, StatusStable)
		}
	})

	t.Run("callback slices are detached", func(t *testing.T) {
		t.Parallel()
		root := testRoot(t, Fields{})
		deps := []Dependency{{Type: DependencyGo, Name: "a", Version: ">= 1.0"}}
		if err := root.Update(func(f *Fields) { f.Dependencies = Set(deps) }); err != nil {
			t.Fatalf("Update: %v", err)
		}
		deps[0].Name = "mutated"
		got, _ := root.Dependencies()
		if got[0].Name != "a" {
			t.Errorf("stored dependency name = %q, want %q", got[0].Name, "a")
		}
	})
}

func TestConcurrentResolveDuringUpdate(t *testing.T) {
	t.Parallel()

	root := testRoot(t, Fields{AIAccessLevel: Set(AIRead), Status: Set(StatusStable)})
	child := testChild(t, root, ModuleAt("proj.c"), Fields{})

	// Each published record pairs an access level with a status; a reader
	// must never see the access level of one record with the status of another.
	pairs := map[AIAccessLevel]Status{
		AIRead:             StatusStable,
		AIWrite | AIExecute: StatusDeprecated,
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stop)
		for i := 0; i < 500; i++ {
			lvl, st := AIRead, StatusStable
			if i%2 == 0 {
				lvl, st = AIWrite|AIExecute, StatusDeprecated
			}
			if err := root.Update(func(f *Fields) {
				f.AIAccessLevel = Set(lvl)
				f.Status = Set(st)
			}); err != nil {
				t.Errorf("Update: %v", err)
				return
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				f := child.Parent().Fields()
				lvl, _ := f.AIAccessLevel.Get()
				st, _ := f.Status.Get()
				if pairs[lvl] != st {
					t.Errorf("torn record: access %v with status %q", lvl, st)
					return
				}
				if _, err := child.AIAccessLevel(); err != nil {
					t.Errorf("AIAccessLevel: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
