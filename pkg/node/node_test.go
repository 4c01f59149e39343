package node

import (
	"encoding/json"
	"testing"
)

// buildUnit decodes a unit document from node docs, failing the test on
// validation errors.
func buildUnit(t *testing.T, nodes []map[string]any) *Unit {
	t.Helper()
	data, err := json.Marshal(map[string]any{"path": "test.unit.json", "nodes": nodes})
	if err != nil {
		t.Fatal(err)
	}
	u, err := Decode("test.unit.json", data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	return u
}

func testTree(t *testing.T) *Unit {
	// unit
	// └── class
	//     ├── field
	//     └── method
	//         └── call
	return buildUnit(t, []map[string]any{
		{"id": 0, "kind": "unit", "children": []int{1}, "start": 0, "end": 100},
		{"id": 1, "kind": "class", "attrs": map[string]any{"name": "Order", "method.count": 1}, "children": []int{2, 3}, "start": 0, "end": 100},
		{"id": 2, "kind": "field", "attrs": map[string]any{"name": "total", "type": "int"}, "start": 10, "end": 20},
		{"id": 3, "kind": "method", "attrs": map[string]any{"name": "save", "param.names": []string{"db", "ctx"}}, "children": []int{4}, "start": 30, "end": 90},
		{"id": 4, "kind": "call", "attrs": map[string]any{"callee": "insert", "bounded": false}, "start": 40, "end": 60},
	})
}

func TestSpanContains(t *testing.T) {
	outer := Span{Start: 0, End: 100}
	inner := Span{Start: 10, End: 50}

	if !outer.Contains(inner) {
		t.Error("outer should contain inner")
	}
	if inner.Contains(outer) {
		t.Error("inner should not contain outer")
	}
	if !outer.Contains(outer) {
		t.Error("a span should contain itself")
	}
}

func TestSpanOverlaps(t *testing.T) {
	a := Span{Start: 0, End: 50}
	b := Span{Start: 40, End: 90}
	c := Span{Start: 50, End: 90}

	if !a.Overlaps(b) {
		t.Error("a and b should overlap")
	}
	// Half-open ranges: touching spans do not overlap.
	if a.Overlaps(c) {
		t.Error("adjacent half-open spans should not overlap")
	}
}

func TestUnitAccessors(t *testing.T) {
	u := testTree(t)

	if u.Len() != 5 {
		t.Errorf("Len() = %d, want 5", u.Len())
	}
	if u.Root().Kind != "unit" {
		t.Errorf("Root().Kind = %q, want unit", u.Root().Kind)
	}
	if u.Node(1).Kind != "class" {
		t.Errorf("Node(1).Kind = %q, want class", u.Node(1).Kind)
	}
	if got := u.Children(1); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Children(1) = %v, want [2 3]", got)
	}
}

func TestUnitParent(t *testing.T) {
	u := testTree(t)

	if _, ok := u.Parent(0); ok {
		t.Error("root should have no parent")
	}
	p, ok := u.Parent(4)
	if !ok || p != 3 {
		t.Errorf("Parent(4) = %d, %v, want 3, true", p, ok)
	}
}

func TestUnitAncestors(t *testing.T) {
	u := testTree(t)

	got := u.Ancestors(4)
	want := []ID{3, 1, 0}
	if len(got) != len(want) {
		t.Fatalf("Ancestors(4) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Ancestors(4)[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if len(u.Ancestors(0)) != 0 {
		t.Error("root should have no ancestors")
	}
}

func TestWithinAncestor(t *testing.T) {
	u := testTree(t)

	if !u.WithinAncestor(4, "method") {
		t.Error("call should be within a method ancestor")
	}
	if !u.WithinAncestor(4, "class") {
		t.Error("call should be within a class ancestor")
	}
	if u.WithinAncestor(4, "call") {
		t.Error("WithinAncestor should not match the node itself")
	}
	if u.WithinAncestor(2, "method") {
		t.Error("field is not inside a method")
	}
}

func TestWalkPreorder(t *testing.T) {
	u := testTree(t)

	var order []ID
	u.Walk(func(n *Node) bool {
		order = append(order, n.ID)
		return true
	})

	want := []ID{0, 1, 2, 3, 4}
	if len(order) != len(want) {
		t.Fatalf("Walk visited %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Walk order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestWalkSkipsSubtree(t *testing.T) {
	u := testTree(t)

	var order []ID
	u.Walk(func(n *Node) bool {
		order = append(order, n.ID)
		return n.Kind != "method" // skip the call under the method
	})

	for _, id := range order {
		if id == 4 {
			t.Error("Walk should have skipped node 4 under the pruned method")
		}
	}
	if len(order) != 4 {
		t.Errorf("Walk visited %d nodes, want 4", len(order))
	}
}

func TestAttrAccessors(t *testing.T) {
	u := testTree(t)

	if s, ok := u.AttrString(1, "name"); !ok || s != "Order" {
		t.Errorf("AttrString(1, name) = %q, %v", s, ok)
	}
	if n, ok := u.AttrInt(1, "method.count"); !ok || n != 1 {
		t.Errorf("AttrInt(1, method.count) = %d, %v", n, ok)
	}
	if b, ok := u.AttrBool(4, "bounded"); !ok || b {
		t.Errorf("AttrBool(4, bounded) = %v, %v, want false, true", b, ok)
	}
	if l, ok := u.AttrStrings(3, "param.names"); !ok || len(l) != 2 || l[0] != "db" {
		t.Errorf("AttrStrings(3, param.names) = %v, %v", l, ok)
	}

	// Absent attributes
	if _, ok := u.Attr(2, "missing"); ok {
		t.Error("Attr should report absent keys")
	}
	if _, ok := u.AttrInt(1, "name"); ok {
		t.Error("AttrInt should reject a string attribute")
	}
}
