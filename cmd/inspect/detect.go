package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go-image-forensics/internal/detector"
	"go-image-forensics/internal/service"
	"go-image-forensics/pkg/models"
	"go-image-forensics/pkg/validation"

	"github.com/spf13/cobra"
)

type detectOptions struct {
	workers int
	maxSize int64
	timeout time.Duration
	json    bool
}

// fileReport is one entry of the --json output
type fileReport struct {
	File   string                  `json:"file"`
	Result *models.DetectionResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

func init() {
	opts := detectOptions{}
	cmd := &cobra.Command{
		Use:   "detect FILE...",
		Short: "Score one or more image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.json = flagJSON
			return runDetect(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent detections (0 = NumCPU)")
	cmd.Flags().Int64Var(&opts.maxSize, "max-size", validation.DefaultMaxPayloadSize, "largest accepted file in bytes")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-file detection timeout")
	rootCmd.AddCommand(cmd)
}

// runDetect scores every file and writes the reports in argument order. It
// returns an error when at least one file could not be scored.
func runDetect(ctx context.Context, w io.Writer, files []string, opts detectOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	pool := detector.NewWorkerPool(opts.workers)
	pool.Start()
	defer pool.Close()

	svc := service.NewDetectionService(
		detector.NewForgeryDetector(),
		pool,
		validation.NewPayloadValidatorWithLimit(opts.maxSize),
		nil,
		nil,
		opts.timeout,
	)

	reports := make([]fileReport, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			reports[i] = detectFile(ctx, svc, file)
		}(i, file)
	}
	wg.Wait()

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			fmt.Fprintln(w, summaryLine(r))
		}
	}

	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be scored", failed, len(files))
	}
	return nil
}

func detectFile(ctx context.Context, svc service.DetectionService, file string) fileReport {
	report := fileReport{File: file}

	data, err := os.ReadFile(file)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	result, err := svc.Detect(ctx, file, data)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Result = result
	return report
}

func summaryLine(r fileReport) string {
	if r.Error != "" {
		return fmt.Sprintf("%s\terror: %s", r.File, r.Error)
	}

	flags := "none"
	if tags := r.Result.MetadataInfo.SuspiciousTags; len(tags) > 0 {
		flags = strings.Join(tags, "; ")
	}
	return fmt.Sprintf("%s\tfake_score=%.4f\tmean_ela=%.4f\tmax_ela=%.4f\tflags=%s",
		r.File, r.Result.FakeScore, r.Result.MeanELA, r.Result.MaxELA, flags)
}
