package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/privplane/anonymizer/internal/config"
	"github.com/privplane/anonymizer/internal/dataset"
	"github.com/privplane/anonymizer/internal/hierarchy"
)

// NewCheckCmd builds the check command: validate a configuration, its dataset
// and its hierarchies without anonymizing anything.
func NewCheckCmd(logger *logrus.Logger) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a configuration without running",
		Long:  "Load and validate the configuration, the dataset and every hierarchy, reporting the first problem found.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			tbl, err := dataset.NewLoader(logger).Load(cfg.Data, cfg.Table)
			if err != nil {
				return err
			}
			if err := cfg.ValidateAgainst(tbl); err != nil {
				return err
			}

			store := hierarchy.NewStore(logger)
			for _, qi := range cfg.Roles.QuasiIdentifying {
				h, err := store.Load(qi, cfg.Hierarchies[qi])
				if err != nil {
					return err
				}
				distinct, err := tbl.DistinctValues(qi)
				if err != nil {
					return err
				}
				if missing := h.MissingValues(distinct); len(missing) > 0 && cfg.CoveragePolicy != config.CoverageSuppress {
					logger.WithFields(logrus.Fields{
						"attribute":      qi,
						"missing_values": missing,
					}).Warn("Hierarchy does not cover every dataset value")
				}
			}

			logger.WithFields(logrus.Fields{
				"rows":    tbl.NumRows(),
				"columns": tbl.NumColumns(),
			}).Info("Configuration is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the configuration file (JSON or YAML)")
	cmd.MarkFlagRequired("config")

	return cmd
}
