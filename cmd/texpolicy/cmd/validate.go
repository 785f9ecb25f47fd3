package cmd

import (
	"fmt"

	"github.com/solatis/texpolicy/internal/core/policyset"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <rules-file>",
	Short: "Check a policy rule file",
	Long:  `Validate parses a YAML or JSON rule file, checks field limits and compiles every pattern.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ruleset, err := policyset.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules OK\n", args[0], len(ruleset))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
