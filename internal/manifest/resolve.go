package manifest

import (
	"path"
	"sort"
	"strings"
)

// File is a manifest entry resolved to an absolute sandbox path with its
// decoded contents.
type File struct {
	Path   string // absolute, slash-separated
	Source string // entry path as written in the manifest
	Data   []byte
}

// Normalize maps a manifest path onto an absolute path under root. Both
// slash and backslash separators are accepted.
func Normalize(root, rel string) (string, error) {
	p := strings.ReplaceAll(rel, `\`, "/")
	if strings.TrimSpace(p) == "" {
		return "", ErrEmptyPath
	}

	root = path.Clean("/" + strings.ReplaceAll(root, `\`, "/"))
	full := path.Join(root, p)

	if full == root {
		return "", ErrRootPath
	}
	prefix := root
	if prefix != "/" {
		prefix += "/"
	}
	if !strings.HasPrefix(full, prefix) {
		return "", ErrEscapesRoot
	}
	return full, nil
}

// Resolve normalizes and decodes every entry. It fails on the first bad
// entry in path order, or on any collision, before anything is written.
func Resolve(root string, m Manifest) ([]File, error) {
	owners := make(map[string]string, len(m))
	files := make([]File, 0, len(m))

	for _, rel := range m.Paths() {
		entry := m[rel]

		full, err := Normalize(root, rel)
		if err != nil {
			return nil, &EntryError{Path: rel, Op: "normalize", Err: err}
		}
		if prev, ok := owners[full]; ok {
			srcs := []string{prev, rel}
			sort.Strings(srcs)
			return nil, &CollisionError{Path: full, Sources: srcs}
		}
		owners[full] = rel

		data, err := DecodePayload(entry.Payload)
		if err != nil {
			return nil, &EntryError{Path: rel, Op: "decode", Err: err}
		}
		files = append(files, File{Path: full, Source: rel, Data: data})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
