package node

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsUnitPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"orders.unit.json", true},
		{"a/b/orders.unit.yaml", true},
		{"ORDERS.UNIT.YML", true},
		{"orders.json", false},
		{"unit.json", false},
		{"orders.unit", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsUnitPath(tt.path); got != tt.want {
			t.Errorf("IsUnitPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	data := `{
		"path": "src/orders.rb",
		"nodes": [
			{"id": 0, "kind": "unit", "children": [1], "start": 0, "end": 50},
			{"id": 1, "kind": "class", "attrs": {"name": "Order"}, "start": 0, "end": 50}
		]
	}`

	u, err := Decode("orders.unit.json", []byte(data))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if u.Path != "src/orders.rb" {
		t.Errorf("Path = %q, want src/orders.rb", u.Path)
	}
	if u.Len() != 2 {
		t.Errorf("Len() = %d, want 2", u.Len())
	}
	if name, _ := u.AttrString(1, "name"); name != "Order" {
		t.Errorf("name attr = %q, want Order", name)
	}
}

func TestDecodeYAML(t *testing.T) {
	data := `
path: src/users.py
nodes:
  - id: 0
    kind: unit
    children: [1]
    start: 0
    end: 40
  - id: 1
    kind: method
    attrs:
      name: create
      param.count: 3
    start: 0
    end: 40
`

	u, err := Decode("users.unit.yaml", []byte(data))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if u.Path != "src/users.py" {
		t.Errorf("Path = %q, want src/users.py", u.Path)
	}
	if n, ok := u.AttrInt(1, "param.count"); !ok || n != 3 {
		t.Errorf("param.count = %d, %v, want 3, true", n, ok)
	}
}

func TestDecodeDefaultsPathToFile(t *testing.T) {
	data := `{"nodes": [{"id": 0, "kind": "unit", "start": 0, "end": 1}]}`

	u, err := Decode("fallback.unit.json", []byte(data))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if u.Path != "fallback.unit.json" {
		t.Errorf("Path = %q, want fallback.unit.json", u.Path)
	}
}

func TestDecodeFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "a.unit.json")
	data := `{"path": "a.rb", "nodes": [{"id": 0, "kind": "unit", "start": 0, "end": 10}]}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	u, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile() error: %v", err)
	}
	if u.Path != "a.rb" {
		t.Errorf("Path = %q, want a.rb", u.Path)
	}

	_, err = DecodeFile(filepath.Join(tmpDir, "missing.unit.json"))
	if !errors.Is(err, ErrMalformedUnit) {
		t.Errorf("DecodeFile() on missing file should wrap ErrMalformedUnit, got %v", err)
	}
}

// decodeNodes builds a document from node maps and decodes it.
func decodeNodes(nodes []map[string]any) error {
	data, err := json.Marshal(map[string]any{"path": "t", "nodes": nodes})
	if err != nil {
		return err
	}
	_, err = Decode("t.unit.json", data)
	return err
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		nodes  []map[string]any
		reason string
	}{
		{
			name:   "empty_unit",
			nodes:  []map[string]any{},
			reason: "no nodes",
		},
		{
			name: "sparse_ids",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "start": 0, "end": 10},
				{"id": 5, "kind": "class", "start": 0, "end": 10},
			},
			reason: "dense",
		},
		{
			name: "missing_kind",
			nodes: []map[string]any{
				{"id": 0, "start": 0, "end": 10},
			},
			reason: "kind",
		},
		{
			name: "inverted_span",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "start": 10, "end": 5},
			},
			reason: "inverted span",
		},
		{
			name: "dangling_child",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "children": []int{7}, "start": 0, "end": 10},
			},
			reason: "missing child",
		},
		{
			name: "self_reference",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "children": []int{1}, "start": 0, "end": 10},
				{"id": 1, "kind": "class", "children": []int{1}, "start": 0, "end": 10},
			},
			reason: "references itself",
		},
		{
			name: "multiple_parents",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "children": []int{1, 2}, "start": 0, "end": 10},
				{"id": 1, "kind": "class", "children": []int{2}, "start": 0, "end": 4},
				{"id": 2, "kind": "field", "start": 1, "end": 2},
			},
			reason: "multiple parents",
		},
		{
			name: "root_as_child",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "children": []int{1}, "start": 0, "end": 10},
				{"id": 1, "kind": "class", "children": []int{0}, "start": 0, "end": 10},
			},
			reason: "root node 0",
		},
		{
			name: "cycle_detached_from_root",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "start": 0, "end": 10},
				{"id": 1, "kind": "class", "children": []int{2}, "start": 0, "end": 10},
				{"id": 2, "kind": "method", "children": []int{1}, "start": 0, "end": 10},
			},
			reason: "unreachable",
		},
		{
			name: "child_span_escapes_parent",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "children": []int{1}, "start": 0, "end": 10},
				{"id": 1, "kind": "class", "start": 5, "end": 20},
			},
			reason: "escapes",
		},
		{
			name: "sibling_spans_overlap",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "children": []int{1, 2}, "start": 0, "end": 20},
				{"id": 1, "kind": "class", "start": 0, "end": 12},
				{"id": 2, "kind": "class", "start": 8, "end": 20},
			},
			reason: "overlapping",
		},
		{
			// Overlap between children listed out of span order, so the
			// colliding pair is not adjacent in the child list.
			name: "sibling_spans_overlap_unordered_children",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "children": []int{1, 2, 3}, "start": 0, "end": 60},
				{"id": 1, "kind": "class", "start": 0, "end": 10},
				{"id": 2, "kind": "class", "start": 50, "end": 60},
				{"id": 3, "kind": "class", "start": 5, "end": 8},
			},
			reason: "overlapping",
		},
		{
			name: "non_integral_number_attr",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "attrs": map[string]any{"loc": 3.5}, "start": 0, "end": 10},
			},
			reason: "non-integral",
		},
		{
			name: "mixed_list_attr",
			nodes: []map[string]any{
				{"id": 0, "kind": "unit", "attrs": map[string]any{"names": []any{"a", 2}}, "start": 0, "end": 10},
			},
			reason: "only strings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decodeNodes(tt.nodes)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrMalformedUnit) {
				t.Errorf("error should wrap ErrMalformedUnit, got %v", err)
			}
			var merr *MalformedUnitError
			if !errors.As(err, &merr) {
				t.Fatalf("error should be MalformedUnitError, got %T", err)
			}
			if !strings.Contains(merr.Reason, tt.reason) {
				t.Errorf("Reason = %q, want substring %q", merr.Reason, tt.reason)
			}
		})
	}
}

func TestDecodeUnorderedChildrenAccepted(t *testing.T) {
	// Child lists need not be span-ordered; disjoint siblings in any
	// declaration order are valid.
	err := decodeNodes([]map[string]any{
		{"id": 0, "kind": "unit", "children": []int{2, 1}, "start": 0, "end": 30},
		{"id": 1, "kind": "class", "start": 0, "end": 10},
		{"id": 2, "kind": "class", "start": 20, "end": 30},
	})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
}

func TestDecodeInvalidSyntax(t *testing.T) {
	if _, err := Decode("bad.unit.json", []byte("{not json")); !errors.Is(err, ErrMalformedUnit) {
		t.Errorf("invalid JSON should wrap ErrMalformedUnit, got %v", err)
	}
	if _, err := Decode("bad.unit.yaml", []byte("\t: bad")); !errors.Is(err, ErrMalformedUnit) {
		t.Errorf("invalid YAML should wrap ErrMalformedUnit, got %v", err)
	}
}
