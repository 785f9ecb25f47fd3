package cmd

import (
	"context"
	"fmt"

	"github.com/solatis/texpolicy/internal/core/api"
	"github.com/solatis/texpolicy/internal/core/policyset"
	"github.com/solatis/texpolicy/internal/rules"
	"github.com/solatis/texpolicy/internal/texture"
	"github.com/solatis/texpolicy/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [image]",
	Short: "Resolve import settings for one texture",
	Long: `Resolve selects the policy rule for one texture and prints the resulting import settings.

Texture facts come from the image header when an image path is given; flags override
probed values. Rules come from --rules (or resolver.rules_file) or, with --project,
from the rule store.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	addRuleSourceFlags(resolveCmd)
	resolveCmd.Flags().String("platform", "", "platform name (default resolver.platform)")
	resolveCmd.Flags().String("name", "", "texture name")
	resolveCmd.Flags().String("asset-path", "", "asset path used by asset_paths globs and header lookup")
	resolveCmd.Flags().Int("width", 0, "native width in pixels")
	resolveCmd.Flags().Int("height", 0, "native height in pixels")
	resolveCmd.Flags().Bool("alpha", false, "texture has an alpha channel")
	resolveCmd.Flags().String("current-format", "", "current host format name")
	resolveCmd.Flags().String("root", "", "directory asset paths are relative to when reading dimensions")
	resolveCmd.Flags().StringP("output", "o", outputText, "output format (text, json)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := setup(cmd, map[string]string{
		"resolver.rules_file": "rules",
		"resolver.platform":   "platform",
	})
	if err != nil {
		return err
	}
	defer e.logger.Sync() //nolint:errcheck

	output, _ := cmd.Flags().GetString("output")
	printer, err := newReportPrinter(cmd.OutOrStdout(), output)
	if err != nil {
		return err
	}

	facts, err := factsFromFlags(cmd, args, e.cfg.Resolver.Platform)
	if err != nil {
		return err
	}
	if err := api.ValidateFacts(facts); err != nil {
		return err
	}

	ruleset, err := e.loadRules(ctx, cmd)
	if err != nil {
		return err
	}

	opts := []rules.Option{
		rules.WithLogger(e.logger),
		rules.WithFilter(rules.GlobFilter),
	}
	// Without an asset path there is no header to read; missing dimensions stay 0.
	if facts.AssetPath != "" {
		root, _ := cmd.Flags().GetString("root")
		opts = append(opts, rules.WithNativeSizeProvider(texture.FileSizeProvider{Root: root}))
	}
	resolver := rules.NewResolver(opts...)

	decision, err := resolver.Resolve(ctx, ruleset, facts)
	if err != nil {
		return err
	}
	return printer.Print(decision.Report())
}

// factsFromFlags probes the optional image argument and applies explicit flags.
func factsFromFlags(cmd *cobra.Command, args []string, platform string) (types.TextureFacts, error) {
	var facts types.TextureFacts
	if len(args) == 1 {
		probed, err := texture.Probe(args[0], platform)
		if err != nil {
			return types.TextureFacts{}, err
		}
		facts = probed
	}
	facts.PlatformName = platform

	f := cmd.Flags()
	if f.Changed("name") {
		facts.Name, _ = f.GetString("name")
	}
	if f.Changed("asset-path") {
		facts.AssetPath, _ = f.GetString("asset-path")
	}
	if f.Changed("width") {
		facts.NativeWidth, _ = f.GetInt("width")
	}
	if f.Changed("height") {
		facts.NativeHeight, _ = f.GetInt("height")
	}
	if f.Changed("alpha") {
		facts.HasAlpha, _ = f.GetBool("alpha")
	}
	if f.Changed("current-format") {
		facts.CurrentFormatName, _ = f.GetString("current-format")
	}
	return facts, nil
}

// addRuleSourceFlags registers --rules and --project on cmd.
func addRuleSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("rules", "", "policy rule file, YAML or JSON (default resolver.rules_file)")
	cmd.Flags().String("project", "", "load rules from this project in the rule store instead of a file")
}

// loadRules reads the rule set named by --project or the configured rule file.
func (e *env) loadRules(ctx context.Context, cmd *cobra.Command) ([]types.PolicyRule, error) {
	project, _ := cmd.Flags().GetString("project")
	if project == "" {
		if e.cfg.Resolver.RulesFile == "" {
			return nil, fmt.Errorf("no rules: pass --rules, --project or set resolver.rules_file")
		}
		ruleset, err := policyset.Load(e.cfg.Resolver.RulesFile)
		if err != nil {
			return nil, err
		}
		e.logger.Debug("loaded rule file", zap.String("path", e.cfg.Resolver.RulesFile), zap.Int("rules", len(ruleset)))
		return ruleset, nil
	}

	rs, database, err := e.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	p, err := rs.GetProject(ctx, project)
	if err != nil {
		return nil, err
	}
	return rs.ListRules(ctx, p.ID)
}
