// Package model holds the data types shared across request-handling
// components: directory-listing entries and their kinds.
package model

import (
	"encoding/json"
	"sort"
)

// Kind classifies a PathItem for sorting and WebDAV resourcetype
// rendering.
type Kind int

const (
	File Kind = iota
	Dir
	SymlinkFile
	SymlinkDir
)

// IsDir reports whether the entry is a directory or a symlink to one.
func (k Kind) IsDir() bool { return k == Dir || k == SymlinkDir }

// PathItem is one directory-listing entry.
type PathItem struct {
	Kind  Kind   `json:"-"`
	Name  string `json:"name"`
	MTime int64  `json:"mtime"`
	// Size is left out of the JSON for directories (MarshalJSON writes
	// it for non-directories only, even when zero), matching the data
	// model's "present for files only".
	Size int64 `json:"size,omitempty"`
}

// pathItemJSON mirrors the server's on-the-wire representation,
// which encodes Kind as a short string rather than Go's int.
type pathItemJSON struct {
	PathType string `json:"path_type"`
	Name     string `json:"name"`
	MTime    int64  `json:"mtime"`
	Size     *int64 `json:"size,omitempty"`
}

func (k Kind) String() string {
	switch k {
	case Dir:
		return "Dir"
	case SymlinkDir:
		return "SymlinkDir"
	case SymlinkFile:
		return "SymlinkFile"
	default:
		return "File"
	}
}

// MarshalJSON renders a PathItem the way the directory index JSON and
// search payloads expect: {"path_type":"Dir","name":...,"mtime":...}.
func (p PathItem) MarshalJSON() ([]byte, error) {
	out := pathItemJSON{PathType: p.Kind.String(), Name: p.Name, MTime: p.MTime}
	if !p.Kind.IsDir() {
		size := p.Size
		out.Size = &size
	}
	return json.Marshal(out)
}

// SortPathItems orders entries Dir/SymlinkDir before File/SymlinkFile,
// then case-sensitive ascending by name, per the Directory Renderer spec.
func SortPathItems(items []PathItem) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := items[i].Kind.IsDir(), items[j].Kind.IsDir()
		if di != dj {
			return di
		}
		return items[i].Name < items[j].Name
	})
}
