package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/patina-dev/patina/internal/unitproc"
	"github.com/patina-dev/patina/pkg/models"
	"github.com/patina-dev/patina/pkg/node"
	"github.com/patina-dev/patina/pkg/rule"
)

// Options configures a scan run.
type Options struct {
	// Workers bounds the per-unit matching pool. Zero means one per CPU.
	Workers int

	// UnitTimeout is the soft per-unit matching timeout. Zero disables it.
	UnitTimeout time.Duration

	// MinSeverity drops matches below the threshold from the report.
	MinSeverity int

	// ShowSuppressed keeps suppressed matches in the report (flagged, with
	// their suppressor) instead of filtering them.
	ShowSuppressed bool

	// OnProgress is invoked once per unit as matching completes.
	OnProgress func()
}

// Option is a functional option for configuring the Engine.
type Option func(*Options)

// WithWorkers sets the matching pool size.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithUnitTimeout sets the per-unit soft timeout.
func WithUnitTimeout(d time.Duration) Option {
	return func(o *Options) { o.UnitTimeout = d }
}

// WithMinSeverity filters matches below the given severity.
func WithMinSeverity(min int) Option {
	return func(o *Options) { o.MinSeverity = min }
}

// WithShowSuppressed includes suppressed matches in the report.
func WithShowSuppressed(show bool) Option {
	return func(o *Options) { o.ShowSuppressed = show }
}

// WithProgress sets the per-unit progress callback.
func WithProgress(fn func()) Option {
	return func(o *Options) { o.OnProgress = fn }
}

// Engine runs a loaded catalog against unit corpora. Safe for concurrent
// use: the catalog and rule index are read-only after New.
type Engine struct {
	catalog *rule.Catalog
	index   *ruleIndex
	opts    Options
}

// New creates an engine for the given catalog.
func New(cat *rule.Catalog, opts ...Option) *Engine {
	e := &Engine{catalog: cat, index: buildRuleIndex(cat)}
	for _, opt := range opts {
		opt(&e.opts)
	}
	return e
}

// Scan loads, validates, and matches every unit document, then aggregates
// cross-unit fingerprints, resolves conflicts, and assembles the report.
//
// Recoverable per-unit failures (malformed documents, timeouts) exclude the
// unit from both matching passes and are reported under skipped_units; only
// context cancellation aborts the run.
func (e *Engine) Scan(ctx context.Context, unitPaths []string) (*models.Report, error) {
	var mu sync.Mutex
	var skipped []models.SkippedUnit

	results := unitproc.Map(ctx, unitPaths, e.opts.Workers,
		func(ctx context.Context, path string) (*UnitResult, error) {
			u, err := node.DecodeFile(path)
			if err != nil {
				return nil, err
			}
			return e.matchLoaded(ctx, u, path)
		},
		e.opts.OnProgress,
		func(path string, err error) {
			mu.Lock()
			skipped = append(skipped, models.SkippedUnit{Path: path, Reason: err.Error()})
			mu.Unlock()
		},
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.reduce(results, skipped), nil
}

// ScanUnits matches already-decoded units, used by callers that hold node
// trees in memory (and by tests).
func (e *Engine) ScanUnits(ctx context.Context, units []*node.Unit) (*models.Report, error) {
	var mu sync.Mutex
	var skipped []models.SkippedUnit

	byPath := make(map[string]*node.Unit, len(units))
	paths := make([]string, 0, len(units))
	for _, u := range units {
		byPath[u.Path] = u
		paths = append(paths, u.Path)
	}

	results := unitproc.Map(ctx, paths, e.opts.Workers,
		func(ctx context.Context, path string) (*UnitResult, error) {
			return e.matchLoaded(ctx, byPath[path], path)
		},
		e.opts.OnProgress,
		func(path string, err error) {
			mu.Lock()
			skipped = append(skipped, models.SkippedUnit{Path: path, Reason: err.Error()})
			mu.Unlock()
		},
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.reduce(results, skipped), nil
}

// matchLoaded applies the per-unit soft timeout around one unit traversal.
func (e *Engine) matchLoaded(ctx context.Context, u *node.Unit, path string) (*UnitResult, error) {
	if e.opts.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.UnitTimeout)
		defer cancel()
	}
	res, err := e.matchUnit(ctx, u)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &UnitTimeoutError{Path: path, Timeout: e.opts.UnitTimeout}
		}
		return nil, err
	}
	return res, nil
}

// reduce runs after the map-phase barrier: unitproc.Map has returned, so
// every unit's contribution shard exists before any cross-unit match is
// emitted.
func (e *Engine) reduce(results []*UnitResult, skipped []models.SkippedUnit) *models.Report {
	// Shard arrival order depends on scheduling; sort by path first.
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	var matches []models.Match
	index := newFingerprintIndex()
	for _, r := range results {
		matches = append(matches, r.Matches...)
		index.add(r.Contributions)
	}
	index.freeze()

	matches = append(matches, index.matches(e.catalog)...)
	matches = resolve(matches, e.catalog)

	return e.assemble(matches, skipped, len(results))
}
