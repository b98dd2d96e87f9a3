package manifest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyPath   = errors.New("empty path")
	ErrEscapesRoot = errors.New("path escapes project root")
	ErrRootPath    = errors.New("path resolves to project root")
)

// EntryError reports a manifest entry that could not be normalized or decoded
type EntryError struct {
	Path string // path as written in the manifest
	Op   string // "parse", "normalize", "decode"
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("manifest %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// CollisionError reports entries that normalize to the same absolute path
type CollisionError struct {
	Path    string   // normalized absolute path
	Sources []string // manifest paths that collide, sorted
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("manifest collision at %q: entries %s", e.Path, strings.Join(quoteAll(e.Sources), ", "))
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
