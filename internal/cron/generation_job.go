package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/Vantorrr/yauberu-backend/internal/generator"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
)

type dailyRunner interface {
	RunDaily(ctx context.Context) (generator.Result, error)
}

type summaryNotifier interface {
	DailySummary(ctx context.Context, date string, generated, skipped int)
}

// GenerationJobParams configure the daily order generation job.
type GenerationJobParams struct {
	Logger    *logger.Logger
	Generator dailyRunner
	Notifier  summaryNotifier
	Now       func() time.Time
}

// GenerationJob materializes today's pickup orders for every active
// subscription and reports the totals to the admin channel.
type GenerationJob struct {
	logg      *logger.Logger
	generator dailyRunner
	notifier  summaryNotifier
	now       func() time.Time
}

// NewGenerationJob builds the generation job. Notifier is optional.
func NewGenerationJob(params GenerationJobParams) (*GenerationJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &GenerationJob{
		logg:      params.Logger,
		generator: params.Generator,
		notifier:  params.Notifier,
		now:       now,
	}, nil
}

// Name identifies the job in logs and metrics.
func (j *GenerationJob) Name() string { return "order-generation" }

// Run executes the daily generation sweep. The sweep itself isolates
// per-subscription failures, so an error here means at least one
// subscription could not be processed; the orders that did materialize
// are already committed.
func (j *GenerationJob) Run(ctx context.Context) error {
	result, err := j.generator.RunDaily(ctx)
	ctx = j.logg.WithFields(ctx, map[string]any{
		"generated": result.Generated,
		"skipped":   result.Skipped,
	})
	if j.notifier != nil {
		date := j.now().UTC().Format("2006-01-02")
		j.notifier.DailySummary(ctx, date, result.Generated, result.Skipped)
	}
	if err != nil {
		return fmt.Errorf("daily generation: %w", err)
	}
	j.logg.Info(ctx, "daily generation complete")
	return nil
}
