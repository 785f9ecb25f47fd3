package cmd

import (
	"fmt"

	"github.com/solatis/texpolicy/internal/core/policyset"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage project rule sets in the rule store",
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <project> <rules-file>",
	Short: "Replace a project's rule set with the contents of a rule file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer e.logger.Sync() //nolint:errcheck

		ruleset, err := policyset.Load(args[1])
		if err != nil {
			return err
		}

		rs, database, err := e.openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		p, err := rs.GetProject(ctx, args[0])
		if err != nil {
			return err
		}
		stored, err := rs.ReplaceRules(ctx, p.ID, ruleset)
		if err != nil {
			return err
		}

		e.logger.Info("imported rules",
			zap.String("project", p.Name),
			zap.String("project_id", string(p.ID)),
			zap.Int("rules", len(stored)),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d rules into %s\n", len(stored), p.Name)
		return nil
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list <project>",
	Short: "Print a project's rule set as a rule file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer e.logger.Sync() //nolint:errcheck

		output, _ := cmd.Flags().GetString("output")
		format, err := policyset.ParseFormat(output)
		if err != nil {
			return err
		}

		rs, database, err := e.openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		p, err := rs.GetProject(ctx, args[0])
		if err != nil {
			return err
		}
		ruleset, err := rs.ListRules(ctx, p.ID)
		if err != nil {
			return err
		}
		return policyset.Encode(cmd.OutOrStdout(), ruleset, format)
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesImportCmd, rulesListCmd)
	rulesListCmd.Flags().StringP("output", "o", "yaml", "output format (yaml, json)")
}
