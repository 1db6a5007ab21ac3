package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/config"
	"github.com/luizprojeto1143/museus-frontend-sub000/web/handlers"
)

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or persist kiosk settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = repo.Close() }()
		return outputJSON(handlers.ToConfigResponse(cfg))
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Persist a setting in the database",
	Long: `Persist a setting in the database. Persisted settings override the
config file and environment on the next start.

Keys:
  tenant_id          museum whose dataset and catalog are used
  accept_threshold   confidence needed to accept a match, in (0, 1]
  hysteresis         consecutive cycles before the match changes, >= 1`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	key, value := args[0], args[1]

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	switch key {
	case config.SettingTenantID:
		cfg.Tenant.ID = value
	case config.SettingAcceptThreshold:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if cfg.Recognition.ReleaseThreshold == cfg.Recognition.AcceptThreshold {
			cfg.Recognition.ReleaseThreshold = f
		}
		cfg.Recognition.AcceptThreshold = f
	case config.SettingHysteresis:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		cfg.Recognition.Hysteresis = n
	default:
		return fmt.Errorf("unknown setting %q", key)
	}

	if err := cfg.SaveConfig(ctx, repo); err != nil {
		return err
	}
	if humanOutput {
		outputHuman("%s = %s\n", key, value)
		return nil
	}
	return outputJSON(map[string]string{"status": "saved", "key": key, "value": value})
}
