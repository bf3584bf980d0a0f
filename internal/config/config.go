package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// Backend selectors.
const (
	BackendDirect = "direct"
	BackendEngine = "engine"
)

// Coverage policies for dataset values missing from a hierarchy.
const (
	CoverageError    = "error"
	CoverageSuppress = "suppress"
)

// Config describes one anonymization workflow: where the data lives, how the
// attributes are classified, which hierarchies generalize the
// quasi-identifiers, and which privacy models must hold.
type Config struct {
	// Data is the dataset location. CSV files and SQLite databases are
	// supported; Table names the SQLite table and is ignored for CSV.
	Data  string `json:"data" mapstructure:"data"`
	Table string `json:"table,omitempty" mapstructure:"table"`

	Roles models.AttributeRoles `json:"roles" mapstructure:"roles,squash"`

	// Hierarchies maps each quasi-identifying attribute to its hierarchy
	// CSV file.
	Hierarchies map[string]string `json:"hierarchies" mapstructure:"hierarchies"`

	K *int     `json:"k,omitempty" mapstructure:"k"`
	L *int     `json:"l,omitempty" mapstructure:"l"`
	T *float64 `json:"t,omitempty" mapstructure:"t"`

	LVariant string `json:"l_variant,omitempty" mapstructure:"l_variant"`

	// SuppressionLimit is the maximum percentage (0-100) of rows that may be
	// suppressed. It is deliberately required whenever a privacy model is
	// active: backends historically disagreed on the implicit default, so an
	// unset limit is a configuration error rather than a silent choice.
	SuppressionLimit *float64 `json:"suppression_limit,omitempty" mapstructure:"suppression_limit"`

	Backend        string `json:"backend,omitempty" mapstructure:"backend"`
	CoveragePolicy string `json:"coverage_policy,omitempty" mapstructure:"coverage_policy"`

	// Output is the optional path for the anonymized CSV.
	Output string `json:"output,omitempty" mapstructure:"output"`
}

// Load reads a configuration file (JSON or YAML, by extension) via viper.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidInput, "cannot read configuration file").
			WithCause(err).
			WithContext("path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidInput, "cannot decode configuration file").
			WithCause(err).
			WithContext("path", path)
	}
	return cfg, nil
}

// Constraints converts the configured parameters into a privacy constraint
// set. Call Validate first.
func (c *Config) Constraints() models.Constraints {
	constraints := models.Constraints{
		K:        c.K,
		L:        c.L,
		T:        c.T,
		LVariant: models.DiversityVariant(c.LVariant),
	}
	if c.SuppressionLimit != nil {
		constraints.SuppressionLimit = *c.SuppressionLimit
	}
	return constraints
}

// Validate checks everything that can be checked before touching data:
// role disjointness, parameter ranges, hierarchy assignments and the
// backend selector. Surfaced immediately, before any dataset is loaded.
func (c *Config) Validate() error {
	if c.Data == "" {
		return errors.NewConfigurationError(errors.CodeMissingField, "no dataset location configured").
			WithCause(errors.ErrMissingDataset)
	}
	if len(c.Roles.QuasiIdentifying) == 0 {
		return errors.NewConfigurationError(errors.CodeMissingField, "no quasi-identifying attributes configured").
			WithCause(errors.ErrNoQuasiIdentifiers)
	}

	if dup := c.Roles.Overlapping(); len(dup) > 0 {
		return errors.NewConfigurationError(errors.CodeOverlappingRoles, "attributes assigned to more than one role").
			WithCause(errors.ErrOverlappingRoles).
			WithContext("attributes", strings.Join(dup, ", "))
	}

	for _, qi := range c.Roles.QuasiIdentifying {
		if _, ok := c.Hierarchies[qi]; !ok {
			return errors.NewConfigurationError(errors.CodeMissingHierarchy, "quasi-identifier has no hierarchy configured").
				WithCause(errors.ErrMissingHierarchy).
				WithContext("attribute", qi)
		}
	}
	for attr := range c.Hierarchies {
		role, ok := c.Roles.RoleOf(attr)
		if !ok || role != models.RoleQuasiIdentifying {
			return errors.NewConfigurationError(errors.CodeInvalidInput, "hierarchy configured for a non-quasi-identifying attribute").
				WithContext("attribute", attr)
		}
	}

	if err := c.validateParameters(); err != nil {
		return err
	}

	switch c.Backend {
	case "", BackendDirect, BackendEngine:
	default:
		return errors.NewConfigurationError(errors.CodeUnknownBackend, "unknown anonymization backend").
			WithCause(errors.ErrUnknownBackend).
			WithContext("backend", c.Backend)
	}

	switch c.CoveragePolicy {
	case "", CoverageError, CoverageSuppress:
	default:
		return errors.NewConfigurationError(errors.CodeInvalidInput, "unknown hierarchy coverage policy").
			WithContext("coverage_policy", c.CoveragePolicy)
	}

	return nil
}

func (c *Config) validateParameters() error {
	if c.K != nil && *c.K < 1 {
		return errors.NewConfigurationError(errors.CodeOutOfRange, "k must be at least 1").
			WithCause(errors.ErrInvalidParameter).
			WithContext("k", *c.K)
	}
	if c.L != nil && *c.L < 1 {
		return errors.NewConfigurationError(errors.CodeOutOfRange, "l must be at least 1").
			WithCause(errors.ErrInvalidParameter).
			WithContext("l", *c.L)
	}
	if c.T != nil && (*c.T < 0 || *c.T > 1) {
		return errors.NewConfigurationError(errors.CodeOutOfRange, "t must be between 0 and 1").
			WithCause(errors.ErrInvalidParameter).
			WithContext("t", *c.T)
	}

	switch models.DiversityVariant(c.LVariant) {
	case "", models.DiversityDistinct, models.DiversityEntropy:
	default:
		return errors.NewConfigurationError(errors.CodeInvalidInput, "unknown l-diversity variant").
			WithContext("l_variant", c.LVariant)
	}

	if (c.L != nil || c.T != nil) && len(c.Roles.Sensitive) == 0 {
		return errors.NewConfigurationError(errors.CodeMissingField, "l-diversity and t-closeness require sensitive attributes").
			WithContext("l", c.L).
			WithContext("t", c.T)
	}

	active := c.K != nil || c.L != nil || c.T != nil
	if active {
		if c.SuppressionLimit == nil {
			return errors.NewConfigurationError(errors.CodeMissingSuppression, "suppression limit must be set explicitly when a privacy model is active").
				WithCause(errors.ErrMissingSuppression)
		}
		if *c.SuppressionLimit < 0 || *c.SuppressionLimit > 100 {
			return errors.NewConfigurationError(errors.CodeOutOfRange, "suppression limit must be a percentage between 0 and 100").
				WithCause(errors.ErrInvalidParameter).
				WithContext("suppression_limit", *c.SuppressionLimit)
		}
	}

	return nil
}

// ValidateAgainst checks the role assignment against the loaded table: every
// column appears in exactly one role and every role names an existing column.
func (c *Config) ValidateAgainst(tbl *models.Table) error {
	for _, attr := range c.Roles.All() {
		if tbl.ColumnIndex(attr) < 0 {
			return errors.NewConfigurationError(errors.CodeUnknownAttribute, "attribute not present in dataset").
				WithCause(errors.ErrUnknownAttribute).
				WithContext("attribute", attr)
		}
	}
	for _, column := range tbl.Columns {
		if _, ok := c.Roles.RoleOf(column); !ok {
			return errors.NewConfigurationError(errors.CodeMissingField,
				fmt.Sprintf("column %q has no role assigned", column)).
				WithContext("attribute", column)
		}
	}
	return nil
}
