package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"plagcheck/internal/config"
	"plagcheck/internal/logger"
	"plagcheck/internal/service"
)

var compareThreshold float64

var compareCmd = &cobra.Command{
	Use:   "compare <fileA> <fileB>",
	Short: "Compare two local documents",
	Long:  "Compare two local .txt or .docx files and print the similarity report as JSON. The files are only read.",
	RunE:  runCompare,
}

func init() {
	compareCmd.Flags().Float64Var(&compareThreshold, "threshold", 0, "Similarity threshold in (0,1] (default: PLAGIARISM_THRESHOLD or 0.7)")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cmd.Flags().Changed("threshold") {
		cfg.Threshold = compareThreshold
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(cmd.ErrOrStderr(), cfg.Location(), logger.ParseLevel(cfg.LogLevel))
	defer func() { _ = log.Sync() }()

	// local files are read in place, nothing is staged
	svc := service.NewComparisonService(nil, service.Options{
		Threshold:        cfg.Threshold,
		MaxDocumentBytes: cfg.MaxDocumentBytes,
		MaxScoredRunes:   cfg.MaxScoredRunes,
		ScoreTimeout:     cfg.ScoreTimeout,
		Logger:           log,
	})

	res, err := svc.CompareFiles(cmd.Context(), args)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res.Response())
}
