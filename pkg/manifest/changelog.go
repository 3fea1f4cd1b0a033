package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ChangelogEntry records one released version of a code unit. Entries are
// kept oldest first.
type ChangelogEntry struct {
	Version string
	Date    Date
	Author  Author
	Notes   []string
}

// String renders "version (date) author".
func (e ChangelogEntry) String() string {
	s := e.Version
	if !e.Date.IsZero() {
		s += " (" + e.Date.String() + ")"
	}
	if e.Author.Name != "" {
		s += " " + e.Author.Name
	}
	return s
}

// ChangelogIssue describes an entry that breaks changelog ordering.
type ChangelogIssue struct {
	Index   int
	Version string
	Reason  string
}

// String renders the issue for lint output.
func (i ChangelogIssue) String() string {
	return fmt.Sprintf("changelog[%d] %s: %s", i.Index, i.Version, i.Reason)
}

// LintChangelog reports duplicate versions and comparable versions that do
// not increase in list order. Versions that are not semantic versions are
// only checked for duplicates. Construction never enforces these rules.
func LintChangelog(entries []ChangelogEntry) []ChangelogIssue {
	var issues []ChangelogIssue
	seen := make(map[string]int, len(entries))
	var prev *semver.Version
	prevIdx := -1

	for i, e := range entries {
		if e.Version == "" {
			issues = append(issues, ChangelogIssue{Index: i, Reason: "missing version"})
			continue
		}
		if j, ok := seen[e.Version]; ok {
			issues = append(issues, ChangelogIssue{Index: i, Version: e.Version, Reason: fmt.Sprintf("duplicates changelog[%d]", j)})
			continue
		}
		seen[e.Version] = i

		v, err := semver.NewVersion(e.Version)
		if err != nil {
			continue
		}
		if prev != nil && !v.GreaterThan(prev) {
			issues = append(issues, ChangelogIssue{
				Index:   i,
				Version: e.Version,
				Reason:  fmt.Sprintf("not greater than %s at changelog[%d]", prev.Original(), prevIdx),
			})
			continue
		}
		prev, prevIdx = v, i
	}
	return issues
}

func cloneChangelog(entries []ChangelogEntry) []ChangelogEntry {
	if entries == nil {
		return nil
	}
	out := make([]ChangelogEntry, len(entries))
	for i, e := range entries {
		e.Notes = append([]string(nil), e.Notes...)
		out[i] = e
	}
	return out
}
