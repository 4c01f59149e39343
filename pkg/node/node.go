// Package node implements the language-agnostic node model consumed by the
// matching engine. Each compilation unit owns a dense arena of immutable
// nodes addressed by integer id, so matches can reference nodes by cheap
// (unit, id) pairs across goroutines.
package node

// ID addresses a node within its unit's arena.
type ID uint32

// Span is a half-open [Start, End) byte range within the unit's source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Overlaps reports whether the two spans share any range.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Node is one element of a parsed source tree. Immutable after decode.
type Node struct {
	ID       ID
	Kind     string
	Attrs    map[string]any
	Children []ID
	Span     Span
}

// Unit is a per-compilation-unit arena of nodes. The root is always node 0.
// Units are immutable after Validate succeeds and safe for concurrent reads.
type Unit struct {
	Path   string
	nodes  []Node
	parent []int32 // -1 for the root
}

// Len returns the number of nodes in the arena.
func (u *Unit) Len() int {
	return len(u.nodes)
}

// Node returns the node with the given id. The returned pointer must be
// treated as read-only.
func (u *Unit) Node(id ID) *Node {
	return &u.nodes[id]
}

// Root returns the root node of the unit.
func (u *Unit) Root() *Node {
	return &u.nodes[0]
}

// Children returns the child ids of the given node.
func (u *Unit) Children(id ID) []ID {
	return u.nodes[id].Children
}

// Parent returns the parent of id, or false for the root.
func (u *Unit) Parent(id ID) (ID, bool) {
	p := u.parent[id]
	if p < 0 {
		return 0, false
	}
	return ID(p), true
}

// Ancestors returns the chain of ancestor ids from the immediate parent up
// to the root.
func (u *Unit) Ancestors(id ID) []ID {
	var out []ID
	cur := id
	for {
		p, ok := u.Parent(cur)
		if !ok {
			return out
		}
		out = append(out, p)
		cur = p
	}
}

// WithinAncestor reports whether any ancestor of id has the given kind.
func (u *Unit) WithinAncestor(id ID, kind string) bool {
	cur := id
	for {
		p, ok := u.Parent(cur)
		if !ok {
			return false
		}
		if u.nodes[p].Kind == kind {
			return true
		}
		cur = p
	}
}

// Walk visits every node in preorder. Returning false from fn skips the
// node's subtree.
func (u *Unit) Walk(fn func(n *Node) bool) {
	if len(u.nodes) == 0 {
		return
	}
	u.walk(0, fn)
}

func (u *Unit) walk(id ID, fn func(n *Node) bool) {
	n := &u.nodes[id]
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		u.walk(c, fn)
	}
}

// Attr returns the raw attribute value for key on node id.
func (u *Unit) Attr(id ID, key string) (any, bool) {
	v, ok := u.nodes[id].Attrs[key]
	return v, ok
}

// AttrString returns a string attribute.
func (u *Unit) AttrString(id ID, key string) (string, bool) {
	v, ok := u.nodes[id].Attrs[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// AttrInt returns an integer attribute. JSON decoding yields float64 and
// YAML yields int, so both are accepted.
func (u *Unit) AttrInt(id ID, key string) (int, bool) {
	v, ok := u.nodes[id].Attrs[key]
	if !ok {
		return 0, false
	}
	return coerceInt(v)
}

// AttrBool returns a boolean attribute.
func (u *Unit) AttrBool(id ID, key string) (bool, bool) {
	v, ok := u.nodes[id].Attrs[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// AttrStrings returns a list attribute with every element stringified.
func (u *Unit) AttrStrings(id ID, key string) ([]string, bool) {
	v, ok := u.nodes[id].Attrs[key]
	if !ok {
		return nil, false
	}
	return coerceStrings(v)
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func coerceStrings(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
