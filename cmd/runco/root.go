package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dalagero/SBND-RunCo/internal/config"
	"github.com/dalagero/SBND-RunCo/internal/ifbeam"
	"github.com/dalagero/SBND-RunCo/internal/observability"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "runco",
	Short: "SBND run coordination livetime tooling",
	Long: `RunCo computes SBND detector livetime from IFBeam DB beam
measurements and DAQ active-interval lists, reporting delivered vs.
collected spills and POT.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default .env if present)")
}

// loadConfig resolves the layered configuration for every subcommand.
func loadConfig() (config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return config.Config{}, fmt.Errorf("loading env file: %w", err)
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newIFBeamClient(cfg config.Config, metrics *observability.Metrics) *ifbeam.Client {
	clientCfg := ifbeam.Config{
		BaseURL: cfg.IFBeam.BaseURL,
		Device:  cfg.IFBeam.Device,
		Event:   cfg.IFBeam.Event,
		Timeout: cfg.IFBeam.Timeout,
	}
	if metrics == nil {
		return ifbeam.NewClient(clientCfg, nil)
	}
	return ifbeam.NewClient(clientCfg, metrics)
}
