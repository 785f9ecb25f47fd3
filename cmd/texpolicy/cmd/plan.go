package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/solatis/texpolicy/internal/rules"
	"github.com/solatis/texpolicy/internal/texture"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var planCmd = &cobra.Command{
	Use:   "plan <dir>",
	Short: "Resolve every image under a directory",
	Long: `Plan walks a directory, probes every supported image (png, jpeg, gif) and resolves it
for each requested platform. Nothing is modified; the output is the import plan.

Asset paths are reported relative to <dir> with '/' separators, which is what
asset_paths globs match against.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	addRuleSourceFlags(planCmd)
	planCmd.Flags().StringSlice("platform", nil, "platforms to plan for, repeatable (default resolver.platform)")
	planCmd.Flags().StringP("output", "o", outputText, "output format (text, json)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root := args[0]

	e, err := setup(cmd, map[string]string{"resolver.rules_file": "rules"})
	if err != nil {
		return err
	}
	defer e.logger.Sync() //nolint:errcheck

	output, _ := cmd.Flags().GetString("output")
	printer, err := newReportPrinter(cmd.OutOrStdout(), output)
	if err != nil {
		return err
	}

	platforms, _ := cmd.Flags().GetStringSlice("platform")
	if len(platforms) == 0 {
		platforms = []string{e.cfg.Resolver.Platform}
	}

	ruleset, err := e.loadRules(ctx, cmd)
	if err != nil {
		return err
	}
	// Fail on a broken rule file before walking, not on the first texture.
	if _, err := rules.CompileAll(ruleset); err != nil {
		return err
	}

	resolver := rules.NewResolver(
		rules.WithLogger(e.logger),
		rules.WithFilter(rules.GlobFilter),
	)

	counts := make(map[rules.Outcome]int)
	failed := 0

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !texture.Supported(path) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		for _, platform := range platforms {
			facts, err := texture.Probe(path, platform)
			if err != nil {
				e.logger.Warn("failed to probe texture", zap.String("path", path), zap.Error(err))
				failed++
				break
			}
			facts.AssetPath = filepath.ToSlash(rel)

			decision, err := resolver.Resolve(ctx, ruleset, facts)
			if err != nil {
				return err
			}
			counts[decision.Outcome]++
			if err := printer.Print(decision.Report()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("plan complete",
		zap.Int("applied", counts[rules.OutcomeApplied]),
		zap.Int("skipped", counts[rules.OutcomeSkipped]),
		zap.Int("no_rule", counts[rules.OutcomeNoRule]),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("%d textures could not be probed", failed)
	}
	return nil
}
