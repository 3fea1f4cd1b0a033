// Package codec reads and writes manifests as TOML or YAML documents and
// links sets of documents into manifest chains.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/papapumpkin/manifest/pkg/manifest"
)

// Format is a document encoding.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat indicates a format name or file extension the codec
// cannot handle.
var ErrUnknownFormat = errors.New("unknown manifest document format")

// ParseFormat converts a format name ("toml", "yaml", "yml") to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".toml"
}

// DocumentError attaches the source file and location to a document error.
type DocumentError struct {
	File     string
	Location string
	Err      error
}

// Error prefixes the underlying error with the file and location when known.
func (e *DocumentError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File + ": ")
	}
	if e.Location != "" {
		b.WriteString(e.Location + ": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Marshal encodes the explicit fields of m.
func Marshal(m *manifest.Manifest, format Format) ([]byte, error) {
	return MarshalDocument(FromManifest(m), format)
}

// MarshalDocument encodes doc. Output is deterministic for equal documents.
func MarshalDocument(doc Document, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		data, err := toml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s as toml: %w", doc.Location, err)
		}
		return data, nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("marshaling %s as yaml: %w", doc.Location, err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("marshaling %s as yaml: %w", doc.Location, err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Unmarshal decodes a document. Keys outside the document schema are
// rejected so that a misspelled field is not silently inherited.
func Unmarshal(data []byte, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("parsing toml: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("parsing yaml: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if doc.Location == "" {
		return Document{}, &manifest.ValidationError{Field: "location", Err: errors.New("document has no location")}
	}
	return doc, nil
}

// ReadFile reads and decodes the document at path, choosing the format from
// the extension.
func ReadFile(path string) (Document, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return Document{}, &DocumentError{File: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Unmarshal(data, format)
	if err != nil {
		return Document{}, &DocumentError{File: path, Err: err}
	}
	doc.File = path
	return doc, nil
}

// WriteFile encodes doc to path, creating parent directories as needed.
func WriteFile(path string, doc Document) error {
	format, err := FormatForPath(path)
	if err != nil {
		return &DocumentError{File: path, Err: err}
	}
	data, err := MarshalDocument(doc, format)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
