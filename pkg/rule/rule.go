package rule

// Category groups rules by the family of refactoring they suggest.
type Category string

const (
	CategoryCreational Category = "creational"
	CategoryStructural Category = "structural"
	CategoryBehavioral Category = "behavioral"
	CategoryORM        Category = "orm"
	CategoryCleanCode  Category = "clean-code"
)

// Categories lists the valid rule categories in a stable order.
var Categories = []Category{
	CategoryCreational,
	CategoryStructural,
	CategoryBehavioral,
	CategoryORM,
	CategoryCleanCode,
}

// Rule is one catalog entry: a structural signature plus the metadata needed
// to rank, deduplicate, and explain its matches. Immutable after load.
type Rule struct {
	ID       string
	Category Category

	// Severity ranges 1 (informational) to 5 (blocking).
	Severity int

	// Confidence in (0, 1] applied when the signature is heuristic.
	Confidence float64

	// Refactor is a suggestion template; {name} placeholders are expanded
	// from the match's captures.
	Refactor string

	Signature Signature

	// Supersedes lists rule ids this rule suppresses on identical or nested
	// spans. ConflictsWith lists rules that legitimately coexist on the same
	// span but should be ordered against this one deterministically.
	Supersedes    []string
	ConflictsWith []string

	// index is the declaration position in the catalog, the final
	// deterministic tie-break everywhere.
	index int
}

// Index returns the rule's declaration position within its catalog.
func (r *Rule) Index() int {
	return r.index
}

// EffectiveConfidence is 1.0 for purely structural signatures and the
// declared confidence for heuristic ones.
func (r *Rule) EffectiveConfidence() float64 {
	if r.Signature.Heuristic() {
		return r.Confidence
	}
	return 1.0
}

// SupersedesRule reports whether r declares supersession over id.
func (r *Rule) SupersedesRule(id string) bool {
	for _, s := range r.Supersedes {
		if s == id {
			return true
		}
	}
	return false
}
