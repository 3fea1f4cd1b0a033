package codec

import (
	"fmt"
	"sort"

	"github.com/papapumpkin/manifest/pkg/manifest"
)

// Lookup resolves a location key to an already built manifest.
type Lookup func(key string) (*manifest.Manifest, bool)

// Order returns the documents sorted parent-first. Parents outside docs must
// be resolvable through existing. Within one generation documents are
// ordered by location key.
func Order(docs []Document, existing Lookup) ([]Document, error) {
	byKey := make(map[string]Document, len(docs))
	parentOf := make(map[string]string, len(docs))
	children := make(map[string][]string)

	for _, d := range docs {
		loc, err := d.LocationValue()
		if err != nil {
			return nil, err
		}
		key := loc.Key()
		if prev, ok := byKey[key]; ok {
			return nil, d.wrap(fmt.Errorf("%w: also defined in %s", manifest.ErrConflict, fileOr(prev.File)))
		}
		parent, err := d.ParentKey()
		if err != nil {
			return nil, err
		}
		byKey[key] = d
		parentOf[key] = parent
	}

	inDegree := make(map[string]int, len(byKey))
	for key, parent := range parentOf {
		if parent == "" {
			continue
		}
		if _, ok := byKey[parent]; ok {
			inDegree[key] = 1
			children[parent] = append(children[parent], key)
			continue
		}
		if existing != nil {
			if _, ok := existing(parent); ok {
				continue
			}
		}
		d := byKey[key]
		return nil, d.wrap(fmt.Errorf("parent %s: %w", parent, manifest.ErrNotFound))
	}

	var current []string
	for key := range byKey {
		if inDegree[key] == 0 {
			current = append(current, key)
		}
	}

	out := make([]Document, 0, len(byKey))
	for len(current) > 0 {
		sort.Strings(current)
		var next []string
		for _, key := range current {
			out = append(out, byKey[key])
			for _, child := range children[key] {
				inDegree[child]--
				if inDegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		current = next
	}

	if len(out) != len(byKey) {
		return nil, cycleIn(byKey, parentOf, inDegree)
	}
	return out, nil
}

// cycleIn reports one parent cycle among the documents Kahn's algorithm
// could not order.
func cycleIn(byKey map[string]Document, parentOf map[string]string, inDegree map[string]int) error {
	var stuck []string
	for key := range byKey {
		if inDegree[key] > 0 {
			stuck = append(stuck, key)
		}
	}
	sort.Strings(stuck)

	// Every stuck document leads into a cycle by following parents.
	seen := make(map[string]int)
	var path []string
	for key := stuck[0]; ; key = parentOf[key] {
		if i, ok := seen[key]; ok {
			path = append(path[i:], key)
			break
		}
		seen[key] = len(path)
		path = append(path, key)
	}
	d := byKey[path[0]]
	return d.wrap(&manifest.CycleError{Path: path})
}

// Assemble builds manifests for docs, parents before children. Parents not
// among docs are taken from existing. The result follows Order.
func Assemble(docs []Document, existing Lookup) ([]*manifest.Manifest, error) {
	ordered, err := Order(docs, existing)
	if err != nil {
		return nil, err
	}

	built := make(map[string]*manifest.Manifest, len(ordered))
	lookup := func(key string) (*manifest.Manifest, bool) {
		if m, ok := built[key]; ok {
			return m, true
		}
		if existing != nil {
			return existing(key)
		}
		return nil, false
	}

	out := make([]*manifest.Manifest, 0, len(ordered))
	for i := range ordered {
		m, err := ordered[i].Build(lookup)
		if err != nil {
			return nil, err
		}
		built[m.Location().Key()] = m
		out = append(out, m)
	}
	return out, nil
}

func fileOr(file string) string {
	if file == "" {
		return "another document"
	}
	return file
}
