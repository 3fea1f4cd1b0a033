package manifest

import (
	"fmt"
	"strings"
)

// noneFlag is the text form of an empty flag set.
const noneFlag = "none"

type flagName[F ~uint16] struct {
	flag F
	name string
}

func formatFlags[F ~uint16](f F, names []flagName[F]) string {
	if f == 0 {
		return noneFlag
	}
	var parts []string
	var known F
	for _, n := range names {
		known |= n.flag
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := f &^ known; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// parseFlags accepts names joined by "|" or ",", "none", and "all".
func parseFlags[F ~uint16](s, kind string, names []flagName[F]) (F, error) {
	var out F
	s = strings.TrimSpace(s)
	if s == "" || s == noneFlag {
		return 0, nil
	}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "all" {
			for _, n := range names {
				out |= n.flag
			}
			continue
		}
		found := false
		for _, n := range names {
			if n.name == part {
				out |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, &ValidationError{Field: kind, Err: fmt.Errorf("unknown flag %q", part)}
		}
	}
	return out, nil
}

func splitFlags[F ~uint16](f F, names []flagName[F]) []F {
	var out []F
	for _, n := range names {
		if f&n.flag != 0 {
			out = append(out, n.flag)
		}
	}
	return out
}

// Frontend is the set of interface kinds a code unit exposes.
type Frontend uint16

// Frontend flags.
const (
	FrontendCLI Frontend = 1 << iota
	FrontendAPI
	FrontendTUI
	FrontendGUI
	FrontendWeb

	NoFrontend   Frontend = 0
	AllFrontends          = FrontendCLI | FrontendAPI | FrontendTUI | FrontendGUI | FrontendWeb
)

var frontendNames = []flagName[Frontend]{
	{FrontendCLI, "cli"}, {FrontendAPI, "api"}, {FrontendTUI, "tui"}, {FrontendGUI, "gui"}, {FrontendWeb, "web"},
}

// Union returns f ∪ o.
func (f Frontend) Union(o Frontend) Frontend { return f | o }

// Intersect returns f ∩ o.
func (f Frontend) Intersect(o Frontend) Frontend { return f & o }

// Has reports whether every flag in o is set in f.
func (f Frontend) Has(o Frontend) bool { return f&o == o }

// Valid reports whether f only uses declared flags.
func (f Frontend) Valid() bool { return f&^AllFrontends == 0 }

// Flags returns the individual flags set in f.
func (f Frontend) Flags() []Frontend { return splitFlags(f, frontendNames) }

// String renders f as "cli|api", or "none".
func (f Frontend) String() string { return formatFlags(f, frontendNames) }

// MarshalText implements encoding.TextMarshaler.
func (f Frontend) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Frontend) UnmarshalText(b []byte) error {
	v, err := ParseFrontend(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFrontend parses the String form.
func ParseFrontend(s string) (Frontend, error) {
	return parseFlags(s, string(FieldFrontend), frontendNames)
}

// Backend is the set of storage and transport kinds a code unit uses.
type Backend uint16

// Backend flags.
const (
	BackendSQLite Backend = 1 << iota
	BackendRedis
	BackendPostgreSQL
	BackendFile
	BackendMQTT
	BackendDocker

	NoBackend   Backend = 0
	AllBackends         = BackendSQLite | BackendRedis | BackendPostgreSQL | BackendFile | BackendMQTT | BackendDocker
)

var backendNames = []flagName[Backend]{
	{BackendSQLite, "sqlite"}, {BackendRedis, "redis"}, {BackendPostgreSQL, "postgresql"},
	{BackendFile, "file"}, {BackendMQTT, "mqtt"}, {BackendDocker, "docker"},
}

// Union returns b ∪ o.
func (b Backend) Union(o Backend) Backend { return b | o }

// Intersect returns b ∩ o.
func (b Backend) Intersect(o Backend) Backend { return b & o }

// Has reports whether every flag in o is set in b.
func (b Backend) Has(o Backend) bool { return b&o == o }

// Valid reports whether b only uses declared flags.
func (b Backend) Valid() bool { return b&^AllBackends == 0 }

// Flags returns the individual flags set in b.
func (b Backend) Flags() []Backend { return splitFlags(b, backendNames) }

// String renders b as "sqlite|file", or "none".
func (b Backend) String() string { return formatFlags(b, backendNames) }

// MarshalText implements encoding.TextMarshaler.
func (b Backend) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backend) UnmarshalText(text []byte) error {
	v, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseBackend parses the String form.
func ParseBackend(s string) (Backend, error) {
	return parseFlags(s, string(FieldBackend), backendNames)
}

// backendGroups maps each backend flag to the groups it belongs to.
var backendGroups = map[Backend]BackendGroup{
	BackendSQLite:     GroupDatabase,
	BackendRedis:      GroupDatabase | GroupNetwork,
	BackendPostgreSQL: GroupDatabase | GroupNetwork,
	BackendFile:       GroupFile,
	BackendMQTT:       GroupNetwork,
	BackendDocker:     GroupContainer | GroupNetwork,
}

// Group returns the union of the groups of every backend in b.
func (b Backend) Group() BackendGroup {
	var g BackendGroup
	for _, f := range b.Flags() {
		g |= backendGroups[f]
	}
	return g
}

// BackendGroup classifies backends by the resource they touch.
type BackendGroup uint16

// Backend groups.
const (
	GroupDatabase BackendGroup = 1 << iota
	GroupFile
	GroupNetwork
	GroupContainer

	NoBackendGroup BackendGroup = 0
)

var backendGroupNames = []flagName[BackendGroup]{
	{GroupDatabase, "database"}, {GroupFile, "file"}, {GroupNetwork, "network"}, {GroupContainer, "container"},
}

// Has reports whether every group in o is set in g.
func (g BackendGroup) Has(o BackendGroup) bool { return g&o == o }

// String renders g as "database|network", or "none".
func (g BackendGroup) String() string { return formatFlags(g, backendGroupNames) }

// AIAccessLevel is the set of actions automated agents may take on a code
// unit. It is a hint for coding assistants, not a security boundary.
type AIAccessLevel uint16

// AI access flags.
const (
	AIRead AIAccessLevel = 1 << iota
	AISuggestOnly
	AIForkAllowed
	AIWrite
	AIExecute

	AINoAccess AIAccessLevel = 0
	AIAll                    = AIRead | AISuggestOnly | AIForkAllowed | AIWrite | AIExecute
)

var aiAccessNames = []flagName[AIAccessLevel]{
	{AIRead, "read"}, {AISuggestOnly, "suggest-only"}, {AIForkAllowed, "fork-allowed"},
	{AIWrite, "write"}, {AIExecute, "execute"},
}

// Union returns a ∪ o.
func (a AIAccessLevel) Union(o AIAccessLevel) AIAccessLevel { return a | o }

// Intersect returns a ∩ o.
func (a AIAccessLevel) Intersect(o AIAccessLevel) AIAccessLevel { return a & o }

// Has reports whether every flag in o is set in a.
func (a AIAccessLevel) Has(o AIAccessLevel) bool { return a&o == o }

// Valid reports whether a only uses declared flags.
func (a AIAccessLevel) Valid() bool { return a&^AIAll == 0 }

// Flags returns the individual flags set in a.
func (a AIAccessLevel) Flags() []AIAccessLevel { return splitFlags(a, aiAccessNames) }

// String renders a as "read|suggest-only", or "none".
func (a AIAccessLevel) String() string { return formatFlags(a, aiAccessNames) }

// MarshalText implements encoding.TextMarshaler.
func (a AIAccessLevel) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AIAccessLevel) UnmarshalText(b []byte) error {
	v, err := ParseAIAccessLevel(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAIAccessLevel parses the String form.
func ParseAIAccessLevel(s string) (AIAccessLevel, error) {
	return parseFlags(s, string(FieldAIAccessLevel), aiAccessNames)
}
