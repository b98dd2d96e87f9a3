package manifest

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// Kind tags a manifest payload on the wire
type Kind string

const (
	KindText   Kind = "text"
	KindBinary Kind = "binary"
)

// ParseKind maps a wire tag to a Kind
func ParseKind(tag string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(tag))) {
	case KindText:
		return KindText, nil
	case KindBinary:
		return KindBinary, nil
	case "":
		return "", fmt.Errorf("missing payload kind")
	default:
		return "", fmt.Errorf("unknown payload kind %q", tag)
	}
}

// Payload is the content of one manifest entry. The only implementations
// are the ones returned by Text and Binary.
type Payload interface {
	Kind() Kind
	// Content returns the wire form: raw text or base64.
	Content() string
	sealed()
}

type textPayload struct{ text string }

type binaryPayload struct{ encoded string }

func (textPayload) Kind() Kind          { return KindText }
func (p textPayload) Content() string   { return p.text }
func (textPayload) sealed()             {}
func (binaryPayload) Kind() Kind        { return KindBinary }
func (p binaryPayload) Content() string { return p.encoded }
func (binaryPayload) sealed()           {}

// Text creates a text payload
func Text(s string) Payload {
	return textPayload{text: s}
}

// Binary creates a binary payload from base64 content
func Binary(encoded string) Payload {
	return binaryPayload{encoded: encoded}
}

// BinaryBytes creates a binary payload from raw bytes
func BinaryBytes(b []byte) Payload {
	return binaryPayload{encoded: base64.StdEncoding.EncodeToString(b)}
}

// NewPayload builds a payload from a wire tag and content
func NewPayload(kind Kind, content string) (Payload, error) {
	switch kind {
	case KindText:
		return Text(content), nil
	case KindBinary:
		return Binary(content), nil
	default:
		return nil, fmt.Errorf("unknown payload kind %q", kind)
	}
}

// DecodePayload converts a payload into the bytes written to the sandbox
func DecodePayload(p Payload) ([]byte, error) {
	switch v := p.(type) {
	case textPayload:
		return []byte(v.text), nil
	case binaryPayload:
		return decodeBase64(v.encoded)
	case nil:
		return nil, fmt.Errorf("nil payload")
	default:
		return nil, fmt.Errorf("unsupported payload %T", p)
	}
}

// decodeBase64 follows atob: ASCII whitespace is ignored, and up to two
// "=" may end input whose length is a multiple of four. Padding anywhere
// else is rejected.
func decodeBase64(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\f', '\r':
			return -1
		}
		return r
	}, s)

	if len(cleaned)%4 == 0 {
		cleaned = strings.TrimSuffix(cleaned, "=")
		cleaned = strings.TrimSuffix(cleaned, "=")
	}
	if len(cleaned)%4 == 1 || strings.Contains(cleaned, "=") {
		return nil, fmt.Errorf("invalid base64: malformed length or padding")
	}
	out, err := base64.RawStdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return out, nil
}

// Entry is one file described by a manifest
type Entry struct {
	Path    string
	Payload Payload
}

// Manifest maps relative paths to entries. Order carries no meaning.
type Manifest map[string]Entry

// New builds a manifest from entries
func New(entries ...Entry) Manifest {
	m := make(Manifest, len(entries))
	for _, e := range entries {
		m[e.Path] = e
	}
	return m
}

// Add inserts or replaces an entry
func (m Manifest) Add(path string, p Payload) {
	m[path] = Entry{Path: path, Payload: p}
}

// Paths returns the relative paths in sorted order
func (m Manifest) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a shallow copy; payloads are immutable.
func (m Manifest) Clone() Manifest {
	out := make(Manifest, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
