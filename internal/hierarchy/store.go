package hierarchy

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/privplane/anonymizer/pkg/errors"
)

// Store loads generalization hierarchies from CSV files and caches them per
// attribute/path pair. The cache is populated once and never mutated after
// first load, so a single Store can back any number of concurrent runs.
type Store struct {
	logger *logrus.Logger
	mu     sync.RWMutex
	cache  map[string]*Hierarchy
}

// NewStore creates a hierarchy store.
func NewStore(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{
		logger: logger,
		cache:  make(map[string]*Hierarchy),
	}
}

// Load reads the hierarchy file for the given attribute. The file is a
// headerless CSV: column 0 holds the original value, each subsequent column
// the value at the next generalization level, and the final column the
// literal suppression symbol for every row. Results are cached by
// attribute/path pair.
func (s *Store) Load(attribute, path string) (*Hierarchy, error) {
	key := attribute + "\x1f" + path

	s.mu.RLock()
	if h, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return h, nil
	}
	s.mu.RUnlock()

	h, err := s.parse(attribute, path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[key]; ok {
		return cached, nil
	}
	s.cache[key] = h

	s.logger.WithFields(logrus.Fields{
		"attribute":   attribute,
		"path":        path,
		"max_level":   h.MaxLevel(),
		"domain_size": h.DomainSize(),
	}).Debug("Hierarchy loaded")

	return h, nil
}

func (s *Store) parse(attribute, path string) (*Hierarchy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewHierarchyLoadError(errors.CodeHierarchyNotFound, "cannot open hierarchy file").
			WithCause(err).
			WithContext("attribute", attribute).
			WithContext("path", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewHierarchyLoadError(errors.CodeHierarchyMalformed, "cannot parse hierarchy file").
			WithCause(err).
			WithContext("attribute", attribute).
			WithContext("path", path)
	}
	if len(records) == 0 {
		return nil, errors.NewHierarchyLoadError(errors.CodeHierarchyMalformed, "hierarchy file is empty").
			WithContext("attribute", attribute).
			WithContext("path", path)
	}

	width := len(records[0])
	if width < 2 {
		return nil, errors.NewHierarchyLoadError(errors.CodeHierarchyMalformed, "hierarchy needs at least one generalization level").
			WithContext("attribute", attribute).
			WithContext("path", path)
	}

	mappings := make(map[string][]string, len(records))
	for i, record := range records {
		if len(record) != width {
			return nil, errors.NewHierarchyLoadError(errors.CodeHierarchyMalformed, "inconsistent level count across rows").
				WithContext("attribute", attribute).
				WithContext("row", i+1).
				WithContext("expected_levels", width).
				WithContext("actual_levels", len(record))
		}

		levels := make([]string, width)
		for j, cell := range record {
			levels[j] = strings.TrimSpace(cell)
		}

		if levels[width-1] != SuppressionSymbol {
			return nil, errors.NewHierarchyLoadError(errors.CodeHierarchyMalformed,
				fmt.Sprintf("final level must be the suppression symbol %q", SuppressionSymbol)).
				WithContext("attribute", attribute).
				WithContext("row", i+1).
				WithContext("value", levels[width-1])
		}

		if existing, ok := mappings[levels[0]]; ok {
			for j := range existing {
				if existing[j] != levels[j] {
					return nil, errors.NewHierarchyLoadError(errors.CodeHierarchyBranching, "conflicting mappings for the same value").
						WithCause(errors.ErrHierarchyBranching).
						WithContext("attribute", attribute).
						WithContext("value", levels[0]).
						WithContext("level", j)
				}
			}
			continue
		}
		mappings[levels[0]] = levels
	}

	if err := checkMonotonicity(attribute, mappings, width); err != nil {
		return nil, err
	}

	return &Hierarchy{
		attribute: attribute,
		maxLevel:  width - 1,
		mappings:  mappings,
	}, nil
}

// checkMonotonicity verifies that a value appearing at level i maps to
// exactly one value at level i+1 across all rows.
func checkMonotonicity(attribute string, mappings map[string][]string, width int) error {
	for level := 0; level < width-1; level++ {
		next := make(map[string]string)
		for _, levels := range mappings {
			from, to := levels[level], levels[level+1]
			if prev, ok := next[from]; ok && prev != to {
				return errors.NewHierarchyLoadError(errors.CodeHierarchyBranching, "value generalizes to more than one parent").
					WithCause(errors.ErrHierarchyBranching).
					WithContext("attribute", attribute).
					WithContext("value", from).
					WithContext("level", level)
			}
			next[from] = to
		}
	}
	return nil
}
