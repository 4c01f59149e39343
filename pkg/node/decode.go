package node

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// unitDoc is the wire format produced by the parser collaborator.
type unitDoc struct {
	Path  string    `json:"path" yaml:"path"`
	Nodes []nodeDoc `json:"nodes" yaml:"nodes"`
}

type nodeDoc struct {
	ID       uint32         `json:"id" yaml:"id"`
	Kind     string         `json:"kind" yaml:"kind"`
	Attrs    map[string]any `json:"attrs" yaml:"attrs"`
	Children []uint32       `json:"children" yaml:"children"`
	Start    int            `json:"start" yaml:"start"`
	End      int            `json:"end" yaml:"end"`
}

// Extensions recognized as unit documents.
var unitExtensions = []string{".unit.json", ".unit.yaml", ".unit.yml"}

// IsUnitPath reports whether path looks like a unit document.
func IsUnitPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range unitExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// DecodeFile reads and validates a unit document from disk.
func DecodeFile(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, malformed(path, "read: %v", err)
	}
	return Decode(path, data)
}

// Decode parses a unit document and validates the resulting tree. The format
// is chosen by file extension, defaulting to JSON.
func Decode(path string, data []byte) (*Unit, error) {
	var doc unitDoc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, malformed(path, "decode yaml: %v", err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, malformed(path, "decode json: %v", err)
		}
	}

	unitPath := doc.Path
	if unitPath == "" {
		unitPath = path
	}

	u, err := build(unitPath, doc.Nodes)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// build assembles the arena and enforces the input contract: dense unique
// ids, a single root at id 0, no cycles or dangling references, typed
// attributes, and child spans contained in their parent's span.
func build(path string, docs []nodeDoc) (*Unit, error) {
	if len(docs) == 0 {
		return nil, malformed(path, "unit has no nodes")
	}

	nodes := make([]Node, len(docs))
	for i, d := range docs {
		if int(d.ID) != i {
			return nil, malformed(path, "node ids must be dense: index %d has id %d", i, d.ID)
		}
		if d.Kind == "" {
			return nil, malformed(path, "node %d has no kind", i)
		}
		if d.End < d.Start {
			return nil, malformed(path, "node %d has inverted span [%d, %d)", i, d.Start, d.End)
		}
		attrs, err := checkAttrs(path, i, d.Attrs)
		if err != nil {
			return nil, err
		}
		children := make([]ID, len(d.Children))
		for j, c := range d.Children {
			if int(c) >= len(docs) {
				return nil, malformed(path, "node %d references missing child %d", i, c)
			}
			if int(c) == i {
				return nil, malformed(path, "node %d references itself", i)
			}
			children[j] = ID(c)
		}
		nodes[i] = Node{
			ID:       ID(d.ID),
			Kind:     d.Kind,
			Attrs:    attrs,
			Children: children,
			Span:     Span{Start: d.Start, End: d.End},
		}
	}

	parent := make([]int32, len(nodes))
	for i := range parent {
		parent[i] = -1
	}
	for i := range nodes {
		for _, c := range nodes[i].Children {
			if parent[c] != -1 {
				return nil, malformed(path, "node %d has multiple parents (%d and %d)", c, parent[c], i)
			}
			if c == 0 {
				return nil, malformed(path, "root node 0 referenced as a child of node %d", i)
			}
			parent[c] = int32(i)
		}
	}

	u := &Unit{Path: path, nodes: nodes, parent: parent}

	// Single-parent assignment plus full reachability from the root rules
	// out both cycles and dangling subtrees.
	reached := 0
	u.Walk(func(n *Node) bool {
		reached++
		return true
	})
	if reached != len(nodes) {
		return nil, malformed(path, "%d of %d nodes unreachable from root (cycle or dangling reference)", len(nodes)-reached, len(nodes))
	}

	for i := range nodes {
		for _, c := range nodes[i].Children {
			if !nodes[i].Span.Contains(nodes[c].Span) {
				return nil, malformed(path, "child %d span escapes parent %d", c, i)
			}
		}
		// Child lists are not required to be span-ordered, so sort a copy
		// before the adjacency scan: after sorting by start, any overlap
		// among siblings shows up between neighbors.
		ordered := append([]ID(nil), nodes[i].Children...)
		sort.Slice(ordered, func(a, b int) bool {
			return nodes[ordered[a]].Span.Start < nodes[ordered[b]].Span.Start
		})
		for j := 1; j < len(ordered); j++ {
			a := nodes[ordered[j-1]].Span
			b := nodes[ordered[j]].Span
			if a.Overlaps(b) {
				return nil, malformed(path, "siblings %d and %d have overlapping spans", ordered[j-1], ordered[j])
			}
		}
	}

	return u, nil
}

// checkAttrs enforces the attribute value schema: string, int, bool, or a
// list of strings. Integral floats from JSON decoding are normalized to int.
func checkAttrs(path string, id int, raw map[string]any) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	attrs := make(map[string]any, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string, bool, int, int64:
			attrs[k] = val
		case float64:
			if val != float64(int64(val)) {
				return nil, malformed(path, "node %d attribute %q: non-integral number %v", id, k, val)
			}
			attrs[k] = int(val)
		case []any:
			list, ok := coerceStrings(val)
			if !ok {
				return nil, malformed(path, "node %d attribute %q: lists must contain only strings", id, k)
			}
			attrs[k] = list
		case []string:
			attrs[k] = val
		default:
			return nil, malformed(path, "node %d attribute %q: unsupported type %T", id, k, v)
		}
	}
	return attrs, nil
}
