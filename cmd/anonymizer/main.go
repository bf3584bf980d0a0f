package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/privplane/anonymizer/cmd/anonymizer/commands"
)

var verbose bool

func main() {
	logger := logrus.New()

	rootCmd := &cobra.Command{
		Use:   "anonymizer",
		Short: "Tabular dataset anonymization",
		Long: `Anonymize tabular datasets with k-anonymity, l-diversity and
t-closeness, generalizing quasi-identifiers along user-supplied hierarchies
and reporting the information loss of the result.`,
		Version: "0.1.0",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ANONYMIZER")

	rootCmd.AddCommand(commands.NewRunCmd(logger))
	rootCmd.AddCommand(commands.NewCheckCmd(logger))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
