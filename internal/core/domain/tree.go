package domain

import (
	"encoding/json"
	"sort"

	"go.trai.ch/zerr"
)

// TreeEntry is a single entry of a directory tree: either a regular file
// (Digest set, optionally executable) or a symlink (Target set).
type TreeEntry struct {
	Digest     Digest `json:"digest,omitzero"`
	Executable bool   `json:"executable,omitempty"`
	Target     string `json:"target,omitempty"`
}

// IsSymlink reports whether the entry describes a symlink.
func (e TreeEntry) IsSymlink() bool {
	return e.Target != ""
}

// Tree is a flat mapping of slash-separated relative paths to entries.
// Its serialized form is deterministic, so identical trees always produce
// identical directory digests.
type Tree struct {
	entries map[string]TreeEntry
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{entries: make(map[string]TreeEntry)}
}

// Put adds or replaces the entry at the given relative path.
func (t *Tree) Put(path string, entry TreeEntry) {
	t.entries[path] = entry
}

// Get returns the entry at the given path.
func (t *Tree) Get(path string) (TreeEntry, bool) {
	e, ok := t.entries[path]
	return e, ok
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	return len(t.entries)
}

// Paths returns all entry paths in sorted order.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.entries))
	for p := range t.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Digests returns the digests of all file entries, deduplicated, in sorted path order.
func (t *Tree) Digests() []Digest {
	seen := make(map[Digest]bool, len(t.entries))
	var digests []Digest
	for _, p := range t.Paths() {
		e := t.entries[p]
		if e.IsSymlink() || seen[e.Digest] {
			continue
		}
		seen[e.Digest] = true
		digests = append(digests, e.Digest)
	}
	return digests
}

// treeFile is the serialized form of a single entry.
type treeFile struct {
	Path       string `json:"path"`
	Digest     Digest `json:"digest,omitzero"`
	Executable bool   `json:"executable,omitempty"`
	Target     string `json:"target,omitempty"`
}

// Marshal serializes the tree deterministically (entries sorted by path).
func (t *Tree) Marshal() ([]byte, error) {
	files := make([]treeFile, 0, len(t.entries))
	for _, p := range t.Paths() {
		e := t.entries[p]
		files = append(files, treeFile{
			Path:       p,
			Digest:     e.Digest,
			Executable: e.Executable,
			Target:     e.Target,
		})
	}

	data, err := json.Marshal(files)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to marshal tree")
	}
	return data, nil
}

// UnmarshalTree deserializes a tree produced by Marshal.
func UnmarshalTree(data []byte) (*Tree, error) {
	var files []treeFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, zerr.Wrap(err, "failed to unmarshal tree")
	}

	t := NewTree()
	for _, f := range files {
		t.entries[f.Path] = TreeEntry{
			Digest:     f.Digest,
			Executable: f.Executable,
			Target:     f.Target,
		}
	}
	return t, nil
}

// MergeTrees unions two trees. The same path may appear in both inputs only
// with identical content; divergent content fails with ErrPathConflict.
func MergeTrees(a, b *Tree) (*Tree, error) {
	merged := NewTree()
	for p, e := range a.entries {
		merged.entries[p] = e
	}

	for p, e := range b.entries {
		if existing, ok := merged.entries[p]; ok && existing != e {
			return nil, zerr.With(ErrPathConflict, "path", p)
		}
		merged.entries[p] = e
	}
	return merged, nil
}
