package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects in the rule store",
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer e.logger.Sync() //nolint:errcheck

		rs, database, err := e.openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		p, err := rs.CreateProject(ctx, args[0])
		if err != nil {
			return err
		}
		e.logger.Info("created project", zap.String("project", p.Name), zap.String("project_id", string(p.ID)))
		fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		return nil
	},
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer e.logger.Sync() //nolint:errcheck

		rs, database, err := e.openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		projects, err := rs.ListProjects(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tUPDATED")
		for _, p := range projects {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <name-or-id>",
	Short: "Delete a project with its rules and API keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer e.logger.Sync() //nolint:errcheck

		rs, database, err := e.openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := rs.DeleteProject(ctx, args[0]); err != nil {
			return err
		}
		e.logger.Info("deleted project", zap.String("project", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsCreateCmd, projectsListCmd, projectsDeleteCmd)
}
