package rule

import "regexp"

// Op identifies a predicate variant. Signatures are pure data; evaluation
// semantics live in the engine.
type Op string

const (
	OpKindEquals     Op = "kind"
	OpAttrAtLeast    Op = "attrAtLeast"
	OpAttrAtMost     Op = "attrAtMost"
	OpAttrEquals     Op = "attrEquals"
	OpAttrMatches    Op = "attrMatches"
	OpWithinAncestor Op = "withinAncestor"
	OpAllOf          Op = "allOf"
	OpAnyOf          Op = "anyOf"
	OpNot            Op = "not"
)

// Predicate is one node of a signature's predicate tree.
type Predicate struct {
	Op Op

	// Kind for OpKindEquals and OpWithinAncestor.
	Kind string

	// Attr for the attribute predicates.
	Attr string

	// Value for OpAttrEquals (string, int, or bool).
	Value any

	// Min and Max for the count predicates. For list attributes the length
	// is compared.
	Min int
	Max int

	// Pattern for OpAttrMatches, compiled at catalog load.
	Pattern *regexp.Regexp

	// Preds for OpAllOf and OpAnyOf.
	Preds []Predicate

	// Pred for OpNot.
	Pred *Predicate
}

// Capture names an attribute of the matched node to carry into the Match.
type Capture struct {
	Name string
	Attr string
}

// Repeated marks a signature as cross-unit: matching sites contribute a
// fingerprint built from KeyAttrs instead of an immediate Match, and the
// aggregator emits Matches once a fingerprint group reaches MinOccurrences.
type Repeated struct {
	MinOccurrences int
	KeyAttrs       []string
}

// Signature is a declarative structural predicate describing what to detect.
type Signature struct {
	Where    Predicate
	Captures []Capture
	Repeated *Repeated
}

// CrossUnit reports whether the signature carries a cross-unit quantifier.
func (s *Signature) CrossUnit() bool {
	return s.Repeated != nil
}

// RootKind returns the node kind this signature is anchored on, if the
// predicate tree pins one. The matcher uses it to prune candidate rules
// without evaluating the full tree.
func (s *Signature) RootKind() (string, bool) {
	return rootKind(&s.Where)
}

func rootKind(p *Predicate) (string, bool) {
	switch p.Op {
	case OpKindEquals:
		return p.Kind, true
	case OpAllOf:
		for i := range p.Preds {
			if k, ok := rootKind(&p.Preds[i]); ok {
				return k, true
			}
		}
	}
	return "", false
}

// Heuristic reports whether the signature relies on a tuned threshold or
// pattern with known false-positive risk. Purely structural signatures get
// confidence 1.0; heuristic ones use the rule's declared confidence.
func (s *Signature) Heuristic() bool {
	return heuristic(&s.Where)
}

func heuristic(p *Predicate) bool {
	switch p.Op {
	case OpAttrAtLeast, OpAttrAtMost, OpAttrMatches:
		return true
	case OpAllOf, OpAnyOf:
		for i := range p.Preds {
			if heuristic(&p.Preds[i]) {
				return true
			}
		}
	case OpNot:
		return heuristic(p.Pred)
	}
	return false
}
