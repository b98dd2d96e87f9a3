package manifest

import (
	"context"
	"fmt"
	"os"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/utils"
)

// Source delivers the current manifest. Implementations must return fresh
// data on every call; the worker never caches a fetched manifest.
type Source interface {
	Fetch(ctx context.Context) (Manifest, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) (Manifest, error)

// Fetch calls f
func (f SourceFunc) Fetch(ctx context.Context) (Manifest, error) {
	return f(ctx)
}

// Static returns a source that always yields a copy of m
func Static(m Manifest) Source {
	return SourceFunc(func(ctx context.Context) (Manifest, error) {
		return m.Clone(), nil
	})
}

// FileSource reads a manifest file from the host on every fetch
type FileSource struct {
	Path   string
	Format Format // empty = from extension
}

// Fetch reads and parses the file
func (s *FileSource) Fetch(ctx context.Context) (Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := utils.ManifestValidator().ValidateSize(data); err != nil {
		return nil, err
	}
	format := s.Format
	if format == "" {
		format = FormatFromPath(s.Path)
	}
	return Parse(data, format)
}

// HTTPSource downloads a manifest on every fetch
type HTTPSource struct {
	URL    string
	Format Format // empty = from URL path
	Client *httpclient.Client
}

// NewHTTPSource creates an HTTP source with the default client
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{URL: url, Client: httpclient.NewDefault()}
}

// Fetch downloads and parses the manifest
func (s *HTTPSource) Fetch(ctx context.Context) (Manifest, error) {
	client := s.Client
	if client == nil {
		client = httpclient.NewDefault()
	}
	data, err := client.Get(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download manifest: %w", err)
	}
	if err := utils.ManifestValidator().ValidateSize(data); err != nil {
		return nil, err
	}
	format := s.Format
	if format == "" {
		format = FormatFromPath(s.URL)
	}
	return Parse(data, format)
}

// DirSource builds a manifest from a live project directory on every fetch
type DirSource struct {
	Root   string
	Ignore []string // doublestar patterns relative to Root; nil = DefaultIgnore
}

// Fetch walks the directory
func (s *DirSource) Fetch(ctx context.Context) (Manifest, error) {
	ignore := s.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}
	return Build(ctx, s.Root, ignore)
}
