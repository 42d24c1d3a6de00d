package source

import (
	"cmp"
	"encoding/json"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// NodeKind distinguishes files from directories in the tree.
type NodeKind string

const (
	KindFile      NodeKind = "file"
	KindDirectory NodeKind = "directory"
)

// metadataMarker is the macOS Finder junk file; any path mentioning it is hidden.
const metadataMarker = ".DS_Store"

// TreeNode is one entry of the browsable tree. Path is slash separated and
// relative to the project's cache directory.
type TreeNode struct {
	Name     string
	Path     string
	Kind     NodeKind
	Children []TreeNode
}

type treeNodeJSON struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Type     NodeKind    `json:"type"`
	Children *[]TreeNode `json:"children,omitempty"`
}

// MarshalJSON emits children on every directory, even an empty one, and never on files.
func (n TreeNode) MarshalJSON() ([]byte, error) {
	out := treeNodeJSON{Name: n.Name, Path: n.Path, Type: n.Kind}
	if n.Kind == KindDirectory {
		children := n.Children
		if children == nil {
			children = []TreeNode{}
		}
		out.Children = &children
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (n *TreeNode) UnmarshalJSON(data []byte) error {
	var in treeNodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*n = TreeNode{Name: in.Name, Path: in.Path, Kind: in.Type}
	if in.Children != nil {
		n.Children = *in.Children
	}
	return nil
}

// BuildTree walks root and returns its top-level entries, directories first
// and then alphabetically within each kind. The tree is built from file paths,
// so a directory with no visible file below it is left out. Entries whose
// relative path contains ".DS_Store" are skipped along with everything below them.
func BuildTree(root string) ([]TreeNode, error) {
	arena := newTreeArena()
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.Contains(rel, metadataMarker) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		// directories only appear as parents of files
		if d.Type().IsRegular() {
			arena.add(rel, KindFile)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	nodes := arena.materialize(0)
	if nodes == nil {
		nodes = []TreeNode{}
	}
	return nodes, nil
}

// treeArena owns every node in one slice; parents refer to children by index
// so nothing is shared between the arena and the materialised tree.
type treeArena struct {
	nodes []arenaNode
	index map[string]int
}

type arenaNode struct {
	name     string
	path     string
	kind     NodeKind
	children []int
}

func newTreeArena() *treeArena {
	return &treeArena{
		nodes: []arenaNode{{kind: KindDirectory}},
		index: map[string]int{"": 0},
	}
}

// add inserts rel, creating missing parent directories on the way.
func (a *treeArena) add(rel string, kind NodeKind) int {
	if idx, ok := a.index[rel]; ok {
		if kind == KindDirectory {
			a.nodes[idx].kind = KindDirectory
		}
		return idx
	}

	parent := 0
	if dir := path.Dir(rel); dir != "." {
		parent = a.add(dir, KindDirectory)
	}

	idx := len(a.nodes)
	a.nodes = append(a.nodes, arenaNode{name: path.Base(rel), path: rel, kind: kind})
	a.nodes[parent].children = append(a.nodes[parent].children, idx)
	a.index[rel] = idx
	return idx
}

func (a *treeArena) materialize(idx int) []TreeNode {
	childIdx := a.nodes[idx].children
	if len(childIdx) == 0 {
		return nil
	}
	out := make([]TreeNode, 0, len(childIdx))
	for _, ci := range childIdx {
		n := a.nodes[ci]
		node := TreeNode{Name: n.name, Path: n.path, Kind: n.kind}
		if n.kind == KindDirectory {
			node.Children = a.materialize(ci)
		}
		out = append(out, node)
	}
	slices.SortFunc(out, compareNodes)
	return out
}

func compareNodes(x, y TreeNode) int {
	if x.Kind != y.Kind {
		if x.Kind == KindDirectory {
			return -1
		}
		return 1
	}
	return cmp.Compare(x.Name, y.Name)
}
