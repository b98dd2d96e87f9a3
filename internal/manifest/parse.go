package manifest

import (
	"fmt"
	"path"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Format is a manifest transport encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks a format from a file name or URL path. Unknown
// extensions fall back to JSON, the format of project_fs.json.
func FormatFromPath(p string) Format {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// wireEntry accepts both the "kind" tag and the legacy "type" tag.
type wireEntry struct {
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty" toml:"kind,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Content string `json:"content" yaml:"content" toml:"content"`
}

func (w wireEntry) tag() string {
	if w.Kind != "" {
		return w.Kind
	}
	return w.Type
}

// Parse decodes a manifest from its transport encoding
func Parse(data []byte, format Format) (Manifest, error) {
	var raw map[string]wireEntry

	var err error
	switch format {
	case FormatJSON, "":
		err = sonic.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s manifest: %w", formatName(format), err)
	}

	m := make(Manifest, len(raw))
	for rel, w := range raw {
		kind, err := ParseKind(w.tag())
		if err != nil {
			return nil, &EntryError{Path: rel, Op: "parse", Err: err}
		}
		payload, err := NewPayload(kind, w.Content)
		if err != nil {
			return nil, &EntryError{Path: rel, Op: "parse", Err: err}
		}
		m.Add(rel, payload)
	}
	return m, nil
}

// Encode writes a manifest as JSON with sorted keys and the "kind" tag
func Encode(m Manifest) ([]byte, error) {
	raw := make(map[string]wireEntry, len(m))
	for rel, e := range m {
		if e.Payload == nil {
			return nil, &EntryError{Path: rel, Op: "encode", Err: fmt.Errorf("nil payload")}
		}
		raw[rel] = wireEntry{Kind: string(e.Payload.Kind()), Content: e.Payload.Content()}
	}
	return sonic.ConfigStd.Marshal(raw)
}

func formatName(f Format) string {
	if f == "" {
		return string(FormatJSON)
	}
	return string(f)
}
