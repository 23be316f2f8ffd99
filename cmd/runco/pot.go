package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dalagero/SBND-RunCo/internal/daq"
)

var (
	potT0   string
	potT1   string
	potJSON bool
)

var potCmd = &cobra.Command{
	Use:   "pot",
	Short: "Query delivered spills and POT for a time window",
	Long: `Queries IFBeam DB for the number of spills and the summed POT in
the window [t0, t1]. Timestamps are integer Unix epoch seconds or
RFC3339 and must be UTC.`,
	RunE: runPOT,
}

func init() {
	potCmd.Flags().StringVar(&potT0, "t0", "", "window start (epoch seconds or RFC3339)")
	potCmd.Flags().StringVar(&potT1, "t1", "", "window end (epoch seconds or RFC3339)")
	potCmd.Flags().BoolVar(&potJSON, "json", false, "emit JSON instead of text")
	_ = potCmd.MarkFlagRequired("t0")
	_ = potCmd.MarkFlagRequired("t1")
	rootCmd.AddCommand(potCmd)
}

func runPOT(cmd *cobra.Command, args []string) error {
	t0, err := daq.ParseTimestamp(potT0)
	if err != nil {
		return fmt.Errorf("t0: %w", err)
	}
	t1, err := daq.ParseTimestamp(potT1)
	if err != nil {
		return fmt.Errorf("t1: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newIFBeamClient(cfg, nil)

	sample, err := client.POTInterval(cmd.Context(), t0, t1)
	if err != nil {
		return err
	}

	if potJSON {
		return json.NewEncoder(os.Stdout).Encode(sample)
	}
	fmt.Printf("device:  %s\n", client.Device())
	fmt.Printf("spills:  %d\n", sample.Spills)
	fmt.Printf("pot:     %.6e\n", sample.POT)
	return nil
}
