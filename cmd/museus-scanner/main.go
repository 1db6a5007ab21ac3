// Command museus-scanner runs the kiosk recognition engine and its
// maintenance tools.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

// ExitError is the process exit code for any failed command.
const ExitError = 1

var (
	configPath  string
	envFile     string
	humanOutput bool

	// Set by the root PersistentPreRunE.
	cfg *config.Config
	lg  zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "museus-scanner",
	Short: "On-device artwork recognition for museum kiosks",
	Long: `museus-scanner samples the kiosk camera, embeds each frame and matches it
against the museum's reference dataset with a k-nearest-neighbour vote.

"serve" runs the engine behind the local HTTP/websocket API used by the
kiosk display. The other commands maintain the dataset offline. Output is
JSON unless --human is given.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (env vars override it)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// setup loads the dotenv file, the configuration and the logger.
func setup(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		// A missing .env is normal outside development.
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var err error
	cfg, err = config.LoadConfigFile(configPath)
	if err != nil {
		return err
	}

	lg, err = newLogger(cfg.Log)
	if err != nil {
		return err
	}
	return nil
}
