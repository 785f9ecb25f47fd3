package cmd

import (
	"fmt"

	"github.com/solatis/texpolicy/internal/core/auth"
	"github.com/solatis/texpolicy/internal/core/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage resolver API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create <project>",
	Short: "Create an API key for a project",
	Long: `Create signs a new API key with a configured HMAC secret (TP_HMAC_SECRET or
TP_HMAC_SECRET_N) and records its hash. The key is printed once and cannot be
recovered later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer e.logger.Sync() //nolint:errcheck

		secrets, err := config.HMACSecrets()
		if err != nil {
			return fmt.Errorf("failed to load HMAC secrets: %w", err)
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

		name, _ := cmd.Flags().GetString("name")
		secretID, _ := cmd.Flags().GetString("secret-id")
		key, err := auth.GenerateAPIKey(ctx, rs, secrets, secretID, p.ID, name)
		if err != nil {
			return err
		}

		e.logger.Info("created api key",
			zap.String("api_key_id", key.ID),
			zap.String("project_id", string(key.ProjectID)),
			zap.String("secret_id", key.SecretID),
		)
		fmt.Fprintln(cmd.OutOrStdout(), key.Key)
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
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

		if err := rs.RevokeAPIKey(ctx, args[0]); err != nil {
			return err
		}
		e.logger.Info("revoked api key", zap.String("api_key_id", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd, keysRevokeCmd)
	keysCreateCmd.Flags().String("name", "default", "key label")
	keysCreateCmd.Flags().String("secret-id", "", "HMAC secret to sign with (default newest)")
}
