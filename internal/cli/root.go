// Package cli is the social-connect command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jrsteele09/social-connect/internal/app"
	"github.com/jrsteele09/social-connect/internal/config"
	"github.com/jrsteele09/social-connect/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	storeType  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "social-connect",
	Short: "Connect social accounts and keep their tokens fresh",
	Long: `social-connect runs the OAuth connect flow for Twitter, LinkedIn, Mastodon,
Facebook and GitHub on a loopback callback listener, stores the resulting
credentials encrypted at rest and hands out valid access tokens.

Configuration is read from config.yaml (or --config / CONFIG_PATH) and the
environment, e.g. TWITTER_CLIENT_ID, MASTODON_BASE_URL, ENCRYPTION_KEY.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&storeType, "store", "", "credential store: sqlite or memory (overrides STORE_TYPE)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON instead of human-readable text")
}

// loadSettings reads configuration and initialises logging.
func loadSettings() (*config.Settings, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if storeType != "" {
		cfg.Store.Type = storeType
	}
	logging.Init(cfg.GetEnv(), cfg.GetLogLevel())
	return cfg, nil
}

// newApp is replaced in tests.
var newApp = func(opts ...app.Option) (*app.App, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, opts...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
