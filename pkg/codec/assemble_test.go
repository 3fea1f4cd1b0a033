package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/papapumpkin/manifest/pkg/manifest"
)

func doc(loc, parent string) Document {
	return Document{Location: loc, Parent: parent, File: loc + ".manifest.toml"}
}

func locations(ms []*manifest.Manifest) string {
	keys := make([]string, len(ms))
	for i, m := range ms {
		keys[i] = m.Location().Key()
	}
	return strings.Join(keys, ",")
}

func TestAssembleParentFirst(t *testing.T) {
	t.Parallel()

	root := doc("proj/", "")
	root.Root = true
	docs := []Document{
		doc("proj.core:Engine", "proj.core"),
		doc("proj.util", "proj/"),
		doc("proj.core", "proj/"),
		root,
	}

	got, err := Assemble(docs, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if want := "proj/,proj.core,proj.util,proj.core:Engine"; locations(got) != want {
		t.Errorf("order = %s, want %s", locations(got), want)
	}

	byKey := make(map[string]*manifest.Manifest, len(got))
	for _, m := range got {
		byKey[m.Location().Key()] = m
	}
	if byKey["proj.core:Engine"].Parent() != byKey["proj.core"] {
		t.Error("Engine is not linked to proj.core")
	}
	if byKey["proj.core"].Parent() != byKey["proj/"] {
		t.Error("proj.core is not linked to the root")
	}
}

func TestAssembleExistingParent(t *testing.T) {
	t.Parallel()

	root := manifest.MustNewRoot(manifest.PackageAt("proj"), manifest.Fields{License: manifest.Set(manifest.MIT)})
	existing := func(key string) (*manifest.Manifest, bool) {
		return root, key == "proj/"
	}

	got, err := Assemble([]Document{doc("proj.late", "proj/")}, existing)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if got[0].Parent() != root {
		t.Fatal("document not linked to the existing parent")
	}
	if got[0].License() != manifest.MIT {
		t.Errorf("License() = %v, want MIT", got[0].License())
	}
}

func TestAssembleCycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		docs     []Document
		wantPath string
	}{
		{
			name:     "self parent",
			docs:     []Document{doc("a", "a")},
			wantPath: "a -> a",
		},
		{
			name:     "two documents",
			docs:     []Document{doc("a", "b"), doc("b", "a")},
			wantPath: "a -> b -> a",
		},
		{
			name:     "three documents with a tail",
			docs:     []Document{doc("tail", "x"), doc("x", "y"), doc("y", "z"), doc("z", "x"), doc("ok", "")},
			wantPath: "x -> y -> z -> x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Assemble(tt.docs, nil)
			if !errors.Is(err, manifest.ErrCycle) {
				t.Fatalf("Assemble error = %v, want ErrCycle", err)
			}
			var ce *manifest.CycleError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T does not wrap *CycleError", err)
			}
			if got := strings.Join(ce.Path, " -> "); got != tt.wantPath {
				t.Errorf("cycle path = %q, want %q", got, tt.wantPath)
			}
		})
	}
}

func TestAssembleErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		docs     []Document
		want     error
		wantFile string
	}{
		{
			name:     "missing parent",
			docs:     []Document{doc("a", ""), doc("b", "nowhere")},
			want:     manifest.ErrNotFound,
			wantFile: "b.manifest.toml",
		},
		{
			name:     "duplicate location",
			docs:     []Document{doc("a", ""), {Location: "a", File: "copy.manifest.yaml"}},
			want:     manifest.ErrConflict,
			wantFile: "copy.manifest.yaml",
		},
		{
			name:     "invalid location",
			docs:     []Document{doc("a..b", "")},
			want:     manifest.ErrValidation,
			wantFile: "a..b.manifest.toml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Assemble(tt.docs, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Assemble error = %v, want %v", err, tt.want)
			}
			var de *DocumentError
			if !errors.As(err, &de) || de.File != tt.wantFile {
				t.Errorf("error %v does not name file %s", err, tt.wantFile)
			}
		})
	}
}

func TestOrderEmpty(t *testing.T) {
	t.Parallel()

	got, err := Order(nil, nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Order(nil) = %v, %v", got, err)
	}
}
