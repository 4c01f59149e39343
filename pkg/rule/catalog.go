package rule

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	koanfjson "github.com/knadh/koanf/parsers/json"
	koanftoml "github.com/knadh/koanf/parsers/toml"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/zeebo/blake3"
)

//go:embed schema.json
var schemaJSON []byte

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrRuleLoad marks catalog load failures. Loading is all-or-nothing: a
// single malformed rule fails the whole load, because a partially loaded
// catalog would silently under-report.
var ErrRuleLoad = errors.New("rule load error")

// RuleLoadError describes which rule of which catalog source failed to load.
type RuleLoadError struct {
	Source string
	RuleID string
	Reason string
}

func (e *RuleLoadError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("catalog %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("catalog %s: rule %q: %s", e.Source, e.RuleID, e.Reason)
}

func (e *RuleLoadError) Unwrap() error {
	return ErrRuleLoad
}

func loadErr(source, ruleID, format string, args ...any) error {
	return &RuleLoadError{Source: source, RuleID: ruleID, Reason: fmt.Sprintf(format, args...)}
}

// Catalog is a loaded, validated rule set. Read-only after load and shared
// by all workers without locking.
type Catalog struct {
	rules  []Rule
	byID   map[string]*Rule
	digest [32]byte
}

// Load reads and validates a catalog document from disk. The format is
// chosen by extension (yaml, json, or toml).
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadErr(path, "", "read: %v", err)
	}
	return Parse(path, data)
}

// Default returns the embedded seed catalog.
func Default() (*Catalog, error) {
	return Parse("builtin", defaultCatalog)
}

// Parse validates a catalog document against the embedded schema, decodes
// its rules, and cross-checks them against the node vocabulary.
func Parse(source string, data []byte) (*Catalog, error) {
	var parser koanf.Parser = koanfyaml.Parser()
	switch strings.ToLower(filepath.Ext(source)) {
	case ".json":
		parser = koanfjson.Parser()
	case ".toml":
		parser = koanftoml.Parser()
	}

	raw, err := parser.Unmarshal(data)
	if err != nil {
		return nil, loadErr(source, "", "decode: %v", err)
	}
	doc := normalizeJSON(map[string]any(raw))

	schema, err := compiledSchema()
	if err != nil {
		return nil, loadErr(source, "", "schema: %v", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, loadErr(source, "", "schema validation: %v", err)
	}

	rules, err := decodeRules(source, doc.(map[string]any))
	if err != nil {
		return nil, err
	}

	cat := &Catalog{
		rules:  rules,
		byID:   make(map[string]*Rule, len(rules)),
		digest: blake3.Sum256(data),
	}
	for i := range cat.rules {
		r := &cat.rules[i]
		if _, dup := cat.byID[r.ID]; dup {
			return nil, loadErr(source, r.ID, "duplicate rule id")
		}
		cat.byID[r.ID] = r
	}

	if err := cat.check(source); err != nil {
		return nil, err
	}
	return cat, nil
}

// check validates cross-rule references and rejects contradictory
// supersession declarations.
func (c *Catalog) check(source string) error {
	for i := range c.rules {
		r := &c.rules[i]
		for _, id := range r.Supersedes {
			other, ok := c.byID[id]
			if !ok {
				return loadErr(source, r.ID, "supersedes unknown rule %q", id)
			}
			if id == r.ID {
				return loadErr(source, r.ID, "rule supersedes itself")
			}
			if other.SupersedesRule(r.ID) {
				return loadErr(source, r.ID, "mutual supersession with %q", id)
			}
		}
		for _, id := range r.ConflictsWith {
			if _, ok := c.byID[id]; !ok {
				return loadErr(source, r.ID, "conflictsWith unknown rule %q", id)
			}
			if id == r.ID {
				return loadErr(source, r.ID, "rule conflicts with itself")
			}
		}
	}
	return nil
}

// Rules returns all rules in declaration order.
func (c *Catalog) Rules() []Rule {
	return c.rules
}

// Len returns the number of rules.
func (c *Catalog) Len() int {
	return len(c.rules)
}

// Rule looks up a rule by id.
func (c *Catalog) Rule(id string) (*Rule, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// RulesFor returns the rules of one category in declaration order.
func (c *Catalog) RulesFor(cat Category) []*Rule {
	var out []*Rule
	for i := range c.rules {
		if c.rules[i].Category == cat {
			out = append(out, &c.rules[i])
		}
	}
	return out
}

// LocalRules returns rules evaluated per unit.
func (c *Catalog) LocalRules() []*Rule {
	var out []*Rule
	for i := range c.rules {
		if !c.rules[i].Signature.CrossUnit() {
			out = append(out, &c.rules[i])
		}
	}
	return out
}

// CrossUnitRules returns rules carrying a repeated-across-units quantifier.
func (c *Catalog) CrossUnitRules() []*Rule {
	var out []*Rule
	for i := range c.rules {
		if c.rules[i].Signature.CrossUnit() {
			out = append(out, &c.rules[i])
		}
	}
	return out
}

// Digest returns the blake3 digest of the catalog source, for report
// provenance.
func (c *Catalog) Digest() string {
	return hex.EncodeToString(c.digest[:])
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("catalog.schema.json", doc); err != nil {
		return nil, err
	}
	return compiler.Compile("catalog.schema.json")
})

// normalizeJSON converts parser output into the value shapes the jsonschema
// validator expects: string-keyed maps and float64 numbers.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeJSON(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = normalizeJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeJSON(e)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}

// decodeRules walks the schema-validated document tree. Structural errors
// are already ruled out by the schema; decoding focuses on semantic checks
// against the node vocabulary.
func decodeRules(source string, doc map[string]any) ([]Rule, error) {
	rawRules := doc["rules"].([]any)
	rules := make([]Rule, 0, len(rawRules))
	for i, rr := range rawRules {
		m := rr.(map[string]any)
		id, _ := m["id"].(string)

		r := Rule{
			ID:         id,
			Category:   Category(m["category"].(string)),
			Severity:   int(m["severity"].(float64)),
			Confidence: 1.0,
			Refactor:   m["refactor"].(string),
			index:      i,
		}
		if c, ok := m["confidence"].(float64); ok {
			r.Confidence = c
		}
		r.Supersedes = stringList(m["supersedes"])
		r.ConflictsWith = stringList(m["conflictsWith"])

		sig, err := decodeSignature(source, id, m["signature"].(map[string]any))
		if err != nil {
			return nil, err
		}
		r.Signature = *sig

		rules = append(rules, r)
	}
	return rules, nil
}

func decodeSignature(source, ruleID string, m map[string]any) (*Signature, error) {
	where, err := decodePredicate(source, ruleID, m["where"].(map[string]any))
	if err != nil {
		return nil, err
	}
	sig := &Signature{Where: *where}

	if caps, ok := m["captures"].([]any); ok {
		for _, c := range caps {
			cm := c.(map[string]any)
			capture := Capture{Name: cm["name"].(string), Attr: cm["attr"].(string)}
			if _, ok := AttrDeclared(capture.Attr); !ok {
				return nil, loadErr(source, ruleID, "capture %q references undeclared attribute %q", capture.Name, capture.Attr)
			}
			sig.Captures = append(sig.Captures, capture)
		}
	}

	if rep, ok := m["repeated"].(map[string]any); ok {
		r := &Repeated{
			MinOccurrences: int(rep["minOccurrences"].(float64)),
			KeyAttrs:       stringList(rep["keyAttrs"]),
		}
		if r.MinOccurrences < 2 {
			return nil, loadErr(source, ruleID, "repeated.minOccurrences must be at least 2")
		}
		for _, a := range r.KeyAttrs {
			if _, ok := AttrDeclared(a); !ok {
				return nil, loadErr(source, ruleID, "repeated keyAttr %q is undeclared", a)
			}
		}
		sig.Repeated = r
	}

	return sig, nil
}

func decodePredicate(source, ruleID string, m map[string]any) (*Predicate, error) {
	if len(m) != 1 {
		return nil, loadErr(source, ruleID, "predicate must have exactly one operator, got %d", len(m))
	}
	var op string
	var body any
	for k, v := range m {
		op, body = k, v
	}

	switch Op(op) {
	case OpKindEquals:
		kind := body.(string)
		if !KnownKind(kind) {
			return nil, loadErr(source, ruleID, "unknown node kind %q", kind)
		}
		return &Predicate{Op: OpKindEquals, Kind: kind}, nil

	case OpWithinAncestor:
		kind := body.(string)
		if !KnownKind(kind) {
			return nil, loadErr(source, ruleID, "withinAncestor references unknown kind %q", kind)
		}
		return &Predicate{Op: OpWithinAncestor, Kind: kind}, nil

	case OpAttrAtLeast, OpAttrAtMost:
		bm := body.(map[string]any)
		attr := bm["attr"].(string)
		t, ok := AttrDeclared(attr)
		if !ok {
			return nil, loadErr(source, ruleID, "undeclared attribute %q", attr)
		}
		if t != TypeInt && t != TypeList {
			return nil, loadErr(source, ruleID, "attribute %q is %s; count predicates need int or list", attr, t)
		}
		p := &Predicate{Op: Op(op), Attr: attr}
		if Op(op) == OpAttrAtLeast {
			p.Min = int(bm["min"].(float64))
		} else {
			p.Max = int(bm["max"].(float64))
		}
		return p, nil

	case OpAttrEquals:
		bm := body.(map[string]any)
		attr := bm["attr"].(string)
		t, ok := AttrDeclared(attr)
		if !ok {
			return nil, loadErr(source, ruleID, "undeclared attribute %q", attr)
		}
		value := bm["value"]
		switch t {
		case TypeString:
			if _, ok := value.(string); !ok {
				return nil, loadErr(source, ruleID, "attribute %q expects a string value", attr)
			}
		case TypeInt:
			f, ok := value.(float64)
			if !ok {
				return nil, loadErr(source, ruleID, "attribute %q expects an int value", attr)
			}
			value = int(f)
		case TypeBool:
			if _, ok := value.(bool); !ok {
				return nil, loadErr(source, ruleID, "attribute %q expects a bool value", attr)
			}
		default:
			return nil, loadErr(source, ruleID, "attrEquals cannot compare list attribute %q", attr)
		}
		return &Predicate{Op: OpAttrEquals, Attr: attr, Value: value}, nil

	case OpAttrMatches:
		bm := body.(map[string]any)
		attr := bm["attr"].(string)
		t, ok := AttrDeclared(attr)
		if !ok {
			return nil, loadErr(source, ruleID, "undeclared attribute %q", attr)
		}
		if t != TypeString {
			return nil, loadErr(source, ruleID, "attrMatches needs a string attribute, %q is %s", attr, t)
		}
		re, err := regexp.Compile(bm["pattern"].(string))
		if err != nil {
			return nil, loadErr(source, ruleID, "invalid pattern for %q: %v", attr, err)
		}
		return &Predicate{Op: OpAttrMatches, Attr: attr, Pattern: re}, nil

	case OpAllOf, OpAnyOf:
		items := body.([]any)
		if len(items) == 0 {
			return nil, loadErr(source, ruleID, "%s requires at least one predicate", op)
		}
		p := &Predicate{Op: Op(op), Preds: make([]Predicate, 0, len(items))}
		for _, item := range items {
			sub, err := decodePredicate(source, ruleID, item.(map[string]any))
			if err != nil {
				return nil, err
			}
			p.Preds = append(p.Preds, *sub)
		}
		return p, nil

	case OpNot:
		sub, err := decodePredicate(source, ruleID, body.(map[string]any))
		if err != nil {
			return nil, err
		}
		return &Predicate{Op: OpNot, Pred: sub}, nil

	default:
		return nil, loadErr(source, ruleID, "unknown predicate operator %q", op)
	}
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, i := range items {
		if s, ok := i.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
