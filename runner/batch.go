package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// BatchRunner runs a pipeline for each project in order.
type BatchRunner struct {
	Options RunPipelineOptions
	// LoggerFor, when set, returns the logger used for one project. It lets
	// callers honor per-project log settings.
	LoggerFor func(cfg ProjectConfig) *slog.Logger
}

// RunAll runs every project sequentially. A failing project is logged and
// recorded; the remaining projects still run.
func (b *BatchRunner) RunAll(ctx context.Context, configs []ProjectConfig) []*PipelineResult {
	results := make([]*PipelineResult, 0, len(configs))

	for _, cfg := range configs {
		opts := b.Options
		if b.LoggerFor != nil {
			if l := b.LoggerFor(cfg); l != nil {
				opts.Logger = l
			}
		}
		log := opts.Logger
		if log == nil {
			log = slog.Default()
		}

		if err := cfg.Validate(); err != nil {
			log.Error("skipping project with invalid configuration", "project", cfg.Name, "error", err)
			results = append(results, &PipelineResult{Project: cfg.Name, State: StateFailed, Error: err})
			continue
		}

		result, err := NewPipeline(opts).Run(ctx, cfg)
		if err != nil {
			log.Error("project failed", "project", cfg.Name, "failed_at", result.FailedAt, "error", err)
		}
		results = append(results, result)
	}

	return results
}

// Summary describes the outcome of a batch.
type Summary struct {
	Completed int
	Failed    int
	Lines     []string
}

// Summarize produces one line per project, in order.
func Summarize(results []*PipelineResult) Summary {
	var s Summary
	for _, r := range results {
		if r.Success() {
			s.Completed++
			s.Lines = append(s.Lines, fmt.Sprintf("[OK]   %s (%s)", r.Project, r.Duration.Round(time.Millisecond)))
			continue
		}
		s.Failed++
		where := "config"
		if r.FailedAt != "" {
			where = string(r.FailedAt)
		}
		s.Lines = append(s.Lines, fmt.Sprintf("[FAIL] %s at %s: %v", r.Project, where, r.Error))
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%s\n%d completed, %d failed", strings.Join(s.Lines, "\n"), s.Completed, s.Failed)
}
