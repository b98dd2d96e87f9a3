package manifest

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
)

// DefaultIgnore skips VCS metadata, dependency trees and editor droppings
var DefaultIgnore = []string{
	".git/**",
	"**/node_modules/**",
	"**/__pycache__/**",
	"**/.DS_Store",
}

// Build walks dir and produces a manifest of every regular file not matched
// by an ignore pattern. Paths in the manifest are slash-separated and
// relative to dir.
func Build(ctx context.Context, dir string, ignore []string) (Manifest, error) {
	for _, pattern := range ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat project dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", dir)
	}

	var (
		mu sync.Mutex
		m  = make(Manifest)
	)

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if ignored(ignore, rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}

		payload := Classify(data)
		mu.Lock()
		m.Add(rel, payload)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func ignored(patterns []string, rel string, isDir bool) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if isDir {
			// "dir/**" should prune the directory itself
			if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
				return true
			}
			if strings.HasSuffix(pattern, "/**") {
				if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); ok {
					return true
				}
			}
		}
	}
	return false
}

// Classify chooses a text or binary payload for raw file contents. Text is
// only chosen for valid UTF-8, since text payloads travel as strings.
func Classify(data []byte) Payload {
	if len(data) == 0 {
		return Text("")
	}
	if !utf8.Valid(data) {
		return BinaryBytes(data)
	}

	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return Text(string(data))
		}
	}

	// mimetype saw no text ancestry; let charset detection decide
	if bytes.IndexByte(data, 0) < 0 {
		res, err := chardet.NewTextDetector().DetectBest(data)
		if err == nil && res.Confidence >= 90 && isUTF8Charset(res.Charset) {
			return Text(string(data))
		}
	}
	return BinaryBytes(data)
}

func isUTF8Charset(charset string) bool {
	switch strings.ToUpper(charset) {
	case "UTF-8", "ISO-8859-1", "US-ASCII", "ASCII":
		return true
	}
	return false
}
