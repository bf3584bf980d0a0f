package anonymizer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/privplane/anonymizer/internal/config"
	"github.com/privplane/anonymizer/internal/dataset"
	"github.com/privplane/anonymizer/internal/hierarchy"
	"github.com/privplane/anonymizer/internal/observability"
	"github.com/privplane/anonymizer/internal/privacy"
	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// Backend anonymizes a configured dataset and produces a Result. The two
// variants share the Result/metrics contract: DirectBackend runs the
// generalization driver in-process, EngineBackend delegates the search to an
// external optimization engine.
type Backend interface {
	Anonymize(ctx context.Context, cfg *config.Config) (*Result, error)
}

// Engine is the boundary of the external optimization collaborator. Given the
// table, roles, hierarchies and active constraints it returns the generalized
// table and the chosen level per quasi-identifier; its internal search is
// never inspected.
type Engine interface {
	Transform(ctx context.Context, tbl *models.Table, roles models.AttributeRoles, hierarchies map[string]*hierarchy.Hierarchy, constraints models.Constraints) (*models.Table, map[string]int, error)
}

// Deps bundles the shared collaborators a backend needs. Logger and Collector
// may be nil; Store and Loader are created when absent.
type Deps struct {
	Logger    *logrus.Logger
	Collector *observability.Collector
	Store     *hierarchy.Store
	Loader    *dataset.Loader
	Engine    Engine
}

func (d *Deps) fill() {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.Store == nil {
		d.Store = hierarchy.NewStore(d.Logger)
	}
	if d.Loader == nil {
		d.Loader = dataset.NewLoader(d.Logger)
	}
}

// Select returns the backend named in the configuration. An empty selector
// means the direct backend.
func Select(name string, deps Deps) (Backend, error) {
	deps.fill()
	switch name {
	case "", config.BackendDirect:
		return NewDirectBackend(deps), nil
	case config.BackendEngine:
		if deps.Engine == nil {
			return nil, errors.NewConfigurationError(errors.CodeUnknownBackend, "engine backend selected but no engine wired").
				WithCause(errors.ErrUnknownBackend)
		}
		return NewEngineBackend(deps), nil
	default:
		return nil, errors.NewConfigurationError(errors.CodeUnknownBackend, "unknown anonymization backend").
			WithCause(errors.ErrUnknownBackend).
			WithContext("backend", name)
	}
}

// DirectBackend runs the in-process generalization driver.
type DirectBackend struct {
	deps   Deps
	driver *Driver
}

// NewDirectBackend creates the direct backend.
func NewDirectBackend(deps Deps) *DirectBackend {
	deps.fill()
	return &DirectBackend{
		deps:   deps,
		driver: NewDriver(deps.Logger, deps.Collector),
	}
}

// Anonymize validates the configuration, loads data and hierarchies, runs the
// driver and assembles the Result.
func (b *DirectBackend) Anonymize(ctx context.Context, cfg *config.Config) (*Result, error) {
	prep, err := prepare(cfg, b.deps)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outcome, err := b.driver.Run(ctx, RunInput{
		Table:            prep.working,
		QuasiIdentifiers: cfg.Roles.QuasiIdentifying,
		Hierarchies:      prep.hierarchies,
		Evaluators:       privacy.BuildEvaluators(cfg.Constraints(), cfg.Roles.Sensitive),
		SuppressionLimit: prep.suppressionLimit,
	})
	elapsed := time.Since(start)

	if err != nil {
		b.deps.Collector.RunCompleted(string(StateUnachievable), elapsed)
		return nil, err
	}
	b.deps.Collector.RunCompleted(string(outcome.State), elapsed)

	maskIdentifiers(outcome.Table, cfg.Roles.Identifying)

	return NewResult(
		prep.original,
		outcome.Survivors,
		outcome.Table,
		cfg.Roles,
		prep.hierarchies,
		outcome.Levels,
		outcome.Suppressed+prep.precutSuppressed,
		elapsed,
	), nil
}

// EngineBackend delegates the lattice search to the external engine but
// produces the same Result contract as the direct backend.
type EngineBackend struct {
	deps Deps
}

// NewEngineBackend creates the engine-delegating backend.
func NewEngineBackend(deps Deps) *EngineBackend {
	deps.fill()
	return &EngineBackend{deps: deps}
}

// Anonymize loads data and hierarchies, hands the search to the engine and
// wraps its output.
func (b *EngineBackend) Anonymize(ctx context.Context, cfg *config.Config) (*Result, error) {
	prep, err := prepare(cfg, b.deps)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	generalized, levels, err := b.deps.Engine.Transform(ctx, prep.working, cfg.Roles, prep.hierarchies, cfg.Constraints())
	elapsed := time.Since(start)
	if err != nil {
		b.deps.Collector.RunCompleted(string(StateUnachievable), elapsed)
		return nil, err
	}
	b.deps.Collector.RunCompleted(string(StateSatisfied), elapsed)

	// The engine reports suppression implicitly: rows absent from its output.
	suppressed := prep.working.NumRows() - generalized.NumRows()

	// Original-value alignment survives only when the engine suppressed
	// nothing; otherwise record-aligned metrics degrade to MetricUnavailable.
	survivors := prep.working
	if suppressed != 0 {
		survivors = models.NewTable(prep.working.Columns)
	}

	maskIdentifiers(generalized, cfg.Roles.Identifying)

	return NewResult(
		prep.original,
		survivors,
		generalized,
		cfg.Roles,
		prep.hierarchies,
		levels,
		suppressed+prep.precutSuppressed,
		elapsed,
	), nil
}

type prepared struct {
	original         *models.Table
	working          *models.Table
	hierarchies      map[string]*hierarchy.Hierarchy
	suppressionLimit float64
	precutSuppressed int
}

// prepare performs the shared pre-run pipeline: configuration validation,
// dataset load, role/table cross-check, hierarchy load and coverage
// enforcement.
func prepare(cfg *config.Config, deps Deps) (*prepared, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tbl, err := deps.Loader.Load(cfg.Data, cfg.Table)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateAgainst(tbl); err != nil {
		return nil, err
	}

	hierarchies := make(map[string]*hierarchy.Hierarchy, len(cfg.Roles.QuasiIdentifying))
	for _, qi := range cfg.Roles.QuasiIdentifying {
		h, err := deps.Store.Load(qi, cfg.Hierarchies[qi])
		if err != nil {
			return nil, err
		}
		hierarchies[qi] = h
	}

	working := tbl.Clone()
	precut := 0
	for _, qi := range cfg.Roles.QuasiIdentifying {
		h := hierarchies[qi]
		distinct, err := working.DistinctValues(qi)
		if err != nil {
			return nil, err
		}
		missing := h.MissingValues(distinct)
		if len(missing) == 0 {
			continue
		}

		if cfg.CoveragePolicy != config.CoverageSuppress {
			return nil, errors.NewHierarchyLoadError(errors.CodeHierarchyCoverage, "hierarchy does not cover every dataset value").
				WithCause(errors.ErrHierarchyCoverage).
				WithContext("attribute", qi).
				WithContext("missing_values", missing)
		}

		working, precut = suppressUncovered(working, qi, h, precut)
		deps.Logger.WithFields(logrus.Fields{
			"attribute":      qi,
			"missing_values": len(missing),
		}).Warn("Suppressing rows with values not covered by the hierarchy")
	}

	limit := 0.0
	if cfg.SuppressionLimit != nil {
		limit = *cfg.SuppressionLimit
	}

	return &prepared{
		original:         tbl,
		working:          working,
		hierarchies:      hierarchies,
		suppressionLimit: limit,
		precutSuppressed: precut,
	}, nil
}

func suppressUncovered(tbl *models.Table, attribute string, h *hierarchy.Hierarchy, suppressed int) (*models.Table, int) {
	col := tbl.ColumnIndex(attribute)
	out := models.NewTable(tbl.Columns)
	for _, row := range tbl.Rows {
		if !h.Covers(row[col]) {
			suppressed++
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out, suppressed
}

// maskIdentifiers blanks directly identifying columns in the output table.
func maskIdentifiers(tbl *models.Table, identifiers []string) {
	for _, attr := range identifiers {
		col := tbl.ColumnIndex(attr)
		if col < 0 {
			continue
		}
		for r := range tbl.Rows {
			tbl.Rows[r][col] = hierarchy.SuppressionSymbol
		}
	}
}
