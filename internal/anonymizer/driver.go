package anonymizer

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/privplane/anonymizer/internal/hierarchy"
	"github.com/privplane/anonymizer/internal/observability"
	"github.com/privplane/anonymizer/internal/privacy"
	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// State names the phases of the generalization driver.
type State string

const (
	StateInitial      State = "INITIAL"
	StateEvaluating   State = "EVALUATING"
	StateEscalating   State = "ESCALATING"
	StateSuppressing  State = "SUPPRESSING"
	StateSatisfied    State = "SATISFIED"
	StateUnachievable State = "UNACHIEVABLE"
)

// RunInput carries everything one driver run needs. The table holds original
// (level 0) values; the driver owns its copy and never mutates the input.
type RunInput struct {
	Table            *models.Table
	QuasiIdentifiers []string
	Hierarchies      map[string]*hierarchy.Hierarchy
	Evaluators       []privacy.Evaluator

	// SuppressionLimit is the maximum percentage (0-100) of input rows that
	// may be suppressed.
	SuppressionLimit float64
}

// Outcome is the terminal state of a driver run. Survivors holds the
// unsuppressed rows with their original values, aligned row-for-row with the
// generalized Table; the metrics engine needs both sides.
type Outcome struct {
	Table      *models.Table
	Survivors  *models.Table
	Levels     map[string]int
	Suppressed int
	Steps      int
	State      State
}

// Driver is the state machine that escalates generalization levels per
// attribute, or suppresses records, until every active privacy model passes
// or the suppression budget is exhausted. A Driver is stateless between runs;
// each run owns its own table copy and level map, so independent runs may
// proceed concurrently on separate goroutines.
type Driver struct {
	logger    *logrus.Logger
	collector *observability.Collector
}

// NewDriver creates a generalization driver. Both arguments may be nil.
func NewDriver(logger *logrus.Logger, collector *observability.Collector) *Driver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Driver{logger: logger, collector: collector}
}

// Run executes the state machine to completion. On an UNACHIEVABLE terminal
// state the last attainable outcome is returned alongside the error. The
// context is checked between steps; a cancelled run returns no outcome.
func (d *Driver) Run(ctx context.Context, in RunInput) (*Outcome, error) {
	totalRows := in.Table.NumRows()
	maxSuppress := int(math.Floor(in.SuppressionLimit / 100 * float64(totalRows)))

	levels := make(map[string]int, len(in.QuasiIdentifiers))
	for _, qi := range in.QuasiIdentifiers {
		levels[qi] = 0
	}

	working := in.Table.Clone()
	suppressed := 0
	steps := 0

	d.logger.WithFields(logrus.Fields{
		"rows":              totalRows,
		"quasi_identifiers": len(in.QuasiIdentifiers),
		"models":            len(in.Evaluators),
		"max_suppress":      maxSuppress,
	}).Info("Starting anonymization run")

	for _, ev := range in.Evaluators {
		if err := ev.Feasible(working); err != nil {
			return d.outcome(working, levels, suppressed, steps, StateUnachievable, in), err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil, errors.NewAppError(errors.ErrorTypePrivacy, errors.CodeRunCancelled, "anonymization run cancelled").
				WithCause(ctx.Err())
		default:
		}

		generalized, err := Generalize(working, in.QuasiIdentifiers, levels, in.Hierarchies)
		if err != nil {
			return nil, err
		}
		idx, err := privacy.Classes(generalized, in.QuasiIdentifiers)
		if err != nil {
			return nil, err
		}

		failing, violating, err := d.firstFailing(in.Evaluators, generalized, idx)
		if err != nil {
			return nil, err
		}
		if failing == nil {
			d.logger.WithFields(logrus.Fields{
				"steps":      steps,
				"suppressed": suppressed,
				"classes":    idx.NumClasses(),
				"levels":     levels,
			}).Info("All privacy models satisfied")
			out := d.outcome(working, levels, suppressed, steps, StateSatisfied, in)
			out.Table = generalized
			return out, nil
		}

		attr, escalate, err := d.pickEscalation(working, in, levels, failing)
		if err != nil {
			return nil, err
		}
		if escalate {
			levels[attr]++
			steps++
			d.collector.EscalationStep()
			d.logger.WithFields(logrus.Fields{
				"model":     failing.Name(),
				"attribute": attr,
				"level":     levels[attr],
				"violating": len(violating),
			}).Debug("Escalating generalization level")
			continue
		}

		// All quasi-identifiers are at full suppression; remove the smallest
		// violating class and re-evaluate, since suppression can shift the
		// global sensitive-value distribution.
		key, size := smallestViolating(idx, violating)
		if size == 0 {
			return nil, errors.NewInternalError("model failed without naming a violating class").
				WithContext("model", failing.Name())
		}
		if suppressed+size > maxSuppress {
			d.logger.WithFields(logrus.Fields{
				"model":        failing.Name(),
				"violating":    len(violating),
				"suppressed":   suppressed,
				"max_suppress": maxSuppress,
			}).Warn("Suppression budget exhausted with violations remaining")
			out := d.outcome(working, levels, suppressed, steps, StateUnachievable, in)
			return out, errors.NewPrivacyUnachievable("suppression limit exhausted with violations remaining").
				WithContext("model", failing.Name()).
				WithContext("violating_classes", len(violating)).
				WithContext("suppressed", suppressed).
				WithContext("suppression_limit", in.SuppressionLimit)
		}

		working = removeRows(working, idx.Classes[key])
		suppressed += size
		steps++
		d.collector.RecordsSuppressed(size)
		d.logger.WithFields(logrus.Fields{
			"model":      failing.Name(),
			"class_size": size,
			"suppressed": suppressed,
		}).Debug("Suppressing violating class")
	}
}

// firstFailing evaluates the models in precedence order and returns the first
// one that does not hold. Later models are only reached once earlier ones pass.
func (d *Driver) firstFailing(evaluators []privacy.Evaluator, tbl *models.Table, idx *privacy.ClassIndex) (privacy.Evaluator, map[string]struct{}, error) {
	for _, ev := range evaluators {
		satisfied, violating, err := ev.Evaluate(tbl, idx)
		if err != nil {
			return nil, nil, err
		}
		if !satisfied {
			return ev, violating, nil
		}
	}
	return nil, nil, nil
}

// pickEscalation greedily selects the quasi-identifier whose next level
// leaves the fewest violating classes for the failing model. Ties keep the
// earliest attribute in declaration order; false means every attribute is
// already at full suppression.
func (d *Driver) pickEscalation(working *models.Table, in RunInput, levels map[string]int, failing privacy.Evaluator) (string, bool, error) {
	best := ""
	bestViolating := 0
	found := false

	for _, qi := range in.QuasiIdentifiers {
		h := in.Hierarchies[qi]
		if h == nil || levels[qi] >= h.MaxLevel() {
			continue
		}

		tentative := make(map[string]int, len(levels))
		for k, v := range levels {
			tentative[k] = v
		}
		tentative[qi]++

		generalized, err := Generalize(working, in.QuasiIdentifiers, tentative, in.Hierarchies)
		if err != nil {
			return "", false, err
		}
		idx, err := privacy.Classes(generalized, in.QuasiIdentifiers)
		if err != nil {
			return "", false, err
		}
		satisfied, violating, err := failing.Evaluate(generalized, idx)
		if err != nil {
			return "", false, err
		}

		count := len(violating)
		if satisfied {
			count = 0
		}
		if !found || count < bestViolating {
			best = qi
			bestViolating = count
			found = true
		}
	}

	return best, found, nil
}

func smallestViolating(idx *privacy.ClassIndex, violating map[string]struct{}) (string, int) {
	for _, key := range idx.SmallestFirst() {
		if _, ok := violating[key]; ok {
			return key, len(idx.Classes[key])
		}
	}
	return "", 0
}

func removeRows(tbl *models.Table, rows []int) *models.Table {
	drop := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		drop[r] = struct{}{}
	}

	out := models.NewTable(tbl.Columns)
	for r, row := range tbl.Rows {
		if _, ok := drop[r]; ok {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func (d *Driver) outcome(working *models.Table, levels map[string]int, suppressed, steps int, state State, in RunInput) *Outcome {
	generalized, err := Generalize(working, in.QuasiIdentifiers, levels, in.Hierarchies)
	if err != nil {
		generalized = working.Clone()
	}

	finalLevels := make(map[string]int, len(levels))
	for k, v := range levels {
		finalLevels[k] = v
	}

	return &Outcome{
		Table:      generalized,
		Survivors:  working,
		Levels:     finalLevels,
		Suppressed: suppressed,
		Steps:      steps,
		State:      state,
	}
}
