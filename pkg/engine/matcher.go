// Package engine evaluates a rule catalog against node trees: per-unit
// matching, cross-unit fingerprint aggregation, conflict resolution, and
// report assembly.
package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/patina-dev/patina/pkg/models"
	"github.com/patina-dev/patina/pkg/node"
	"github.com/patina-dev/patina/pkg/rule"
)

// ctxCheckInterval is how many nodes are visited between context deadline
// checks during a unit traversal.
const ctxCheckInterval = 256

// UnitResult is the output of matching one unit: local matches plus the
// fingerprint contributions destined for the aggregator.
type UnitResult struct {
	Path          string
	NodeCount     int
	Matches       []models.Match
	Contributions []Contribution
}

// ruleIndex buckets rules by their anchored root kind so the traversal only
// evaluates plausible candidates at each node.
type ruleIndex struct {
	localByKind  map[string][]*rule.Rule
	localAnyKind []*rule.Rule
	crossByKind  map[string][]*rule.Rule
	crossAnyKind []*rule.Rule
}

func buildRuleIndex(cat *rule.Catalog) *ruleIndex {
	ix := &ruleIndex{
		localByKind: make(map[string][]*rule.Rule),
		crossByKind: make(map[string][]*rule.Rule),
	}
	rules := cat.Rules()
	for i := range rules {
		r := &rules[i]
		kind, anchored := r.Signature.RootKind()
		switch {
		case r.Signature.CrossUnit() && anchored:
			ix.crossByKind[kind] = append(ix.crossByKind[kind], r)
		case r.Signature.CrossUnit():
			ix.crossAnyKind = append(ix.crossAnyKind, r)
		case anchored:
			ix.localByKind[kind] = append(ix.localByKind[kind], r)
		default:
			ix.localAnyKind = append(ix.localAnyKind, r)
		}
	}
	return ix
}

// matchUnit runs one top-down traversal of the unit, evaluating every
// candidate rule at each node. Cross-unit rules emit contributions instead
// of matches. The context is checked periodically so the per-unit soft
// timeout can abandon a runaway unit.
func (e *Engine) matchUnit(ctx context.Context, u *node.Unit) (*UnitResult, error) {
	res := &UnitResult{Path: u.Path, NodeCount: u.Len()}
	visited := 0
	var ctxErr error

	u.Walk(func(n *node.Node) bool {
		visited++
		if visited%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				ctxErr = err
				return false
			}
		}

		for _, r := range e.index.localByKind[n.Kind] {
			e.tryLocal(u, n, r, res)
		}
		for _, r := range e.index.localAnyKind {
			e.tryLocal(u, n, r, res)
		}
		for _, r := range e.index.crossByKind[n.Kind] {
			e.tryCross(u, n, r, res)
		}
		for _, r := range e.index.crossAnyKind {
			e.tryCross(u, n, r, res)
		}
		return true
	})

	if ctxErr != nil {
		return nil, ctxErr
	}
	return res, nil
}

func (e *Engine) tryLocal(u *node.Unit, n *node.Node, r *rule.Rule, res *UnitResult) {
	if !eval(&r.Signature.Where, u, n) {
		return
	}
	res.Matches = append(res.Matches, models.Match{
		UnitPath:   u.Path,
		RuleID:     r.ID,
		Category:   string(r.Category),
		Severity:   r.Severity,
		Span:       n.Span,
		NodeID:     n.ID,
		Captures:   buildCaptures(u, n, r.Signature.Captures),
		Confidence: r.EffectiveConfidence(),
		RuleIndex:  r.Index(),
	})
}

func (e *Engine) tryCross(u *node.Unit, n *node.Node, r *rule.Rule, res *UnitResult) {
	if !eval(&r.Signature.Where, u, n) {
		return
	}
	key, shape, ok := fingerprint(u, n, r.Signature.Repeated.KeyAttrs)
	if !ok {
		return
	}
	caps := buildCaptures(u, n, r.Signature.Captures)
	caps["shape"] = shape
	res.Contributions = append(res.Contributions, Contribution{
		RuleID:   r.ID,
		Key:      key,
		UnitPath: u.Path,
		NodeID:   n.ID,
		Span:     n.Span,
		Captures: caps,
	})
}

// eval evaluates a predicate tree at a node with short-circuit combinator
// semantics. Absent attributes fail their predicate: the engine asserts
// only what the collaborator actually provided.
func eval(p *rule.Predicate, u *node.Unit, n *node.Node) bool {
	switch p.Op {
	case rule.OpKindEquals:
		return n.Kind == p.Kind

	case rule.OpWithinAncestor:
		return u.WithinAncestor(n.ID, p.Kind)

	case rule.OpAttrAtLeast:
		v, ok := countValue(u, n.ID, p.Attr)
		return ok && v >= p.Min

	case rule.OpAttrAtMost:
		v, ok := countValue(u, n.ID, p.Attr)
		return ok && v <= p.Max

	case rule.OpAttrEquals:
		switch want := p.Value.(type) {
		case string:
			got, ok := u.AttrString(n.ID, p.Attr)
			return ok && got == want
		case int:
			got, ok := u.AttrInt(n.ID, p.Attr)
			return ok && got == want
		case bool:
			got, ok := u.AttrBool(n.ID, p.Attr)
			return ok && got == want
		default:
			return false
		}

	case rule.OpAttrMatches:
		s, ok := u.AttrString(n.ID, p.Attr)
		return ok && p.Pattern.MatchString(s)

	case rule.OpAllOf:
		for i := range p.Preds {
			if !eval(&p.Preds[i], u, n) {
				return false
			}
		}
		return true

	case rule.OpAnyOf:
		for i := range p.Preds {
			if eval(&p.Preds[i], u, n) {
				return true
			}
		}
		return false

	case rule.OpNot:
		return !eval(p.Pred, u, n)

	default:
		return false
	}
}

// countValue resolves an attribute as a count: ints directly, lists by
// length.
func countValue(u *node.Unit, id node.ID, attr string) (int, bool) {
	if v, ok := u.AttrInt(id, attr); ok {
		return v, true
	}
	if l, ok := u.AttrStrings(id, attr); ok {
		return len(l), true
	}
	return 0, false
}

// buildCaptures resolves a signature's capture specs at the matched node.
// Every match also carries the node id under "node".
func buildCaptures(u *node.Unit, n *node.Node, specs []rule.Capture) map[string]string {
	caps := make(map[string]string, len(specs)+1)
	caps["node"] = strconv.FormatUint(uint64(n.ID), 10)
	for _, spec := range specs {
		v, ok := u.Attr(n.ID, spec.Attr)
		if !ok {
			continue
		}
		caps[spec.Name] = stringifyAttr(v)
	}
	return caps
}

func stringifyAttr(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []string:
		return strings.Join(val, ", ")
	default:
		return ""
	}
}
