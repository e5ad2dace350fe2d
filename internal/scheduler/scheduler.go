package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/roomwatt/internal/billing/domain"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/identity"
	obsmetrics "github.com/smallbiznis/roomwatt/internal/observability/metrics"
	"github.com/smallbiznis/roomwatt/internal/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobGenerateInvoices = "generate_invoices"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Billing  billingdomain.Service
	Metering *config.MeteringConfigHolder
	Config   Config `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	billing  billingdomain.Service
	metering *config.MeteringConfigHolder
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Billing == nil || p.Metering == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		billing:  p.Billing,
		metering: p.Metering,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout: completed work stays valid and the next tick resumes.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobGenerateInvoices, s.isJobEnabled(JobGenerateInvoices), func(ctx context.Context) error {
			return s.runJob(ctx, JobGenerateInvoices, 0, s.cfg.JobTimeout, s.GenerateInvoicesJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty list means every job runs (monolith mode)
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// Periods returns the billing periods a run covers, newest first.
func (s *Scheduler) Periods() []period.Period {
	current := period.Of(s.clock.Now(), s.metering.Get().Location())
	if !s.cfg.IncludePreviousPeriod {
		return []period.Period{current}
	}
	return []period.Period{current, current.Previous()}
}

// GenerateInvoicesJob bills the current period and, when configured, the
// previous one so a month that crossed its quota after the last run is
// still invoiced.
func (s *Scheduler) GenerateInvoicesJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobGenerateInvoices, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	schedMetrics := obsmetrics.Scheduler()
	var jobErr error

	for _, p := range s.Periods() {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}

		result, err := s.billing.GenerateMonthlyInvoices(ctx, identity.System(), p)
		if errors.Is(err, billingdomain.ErrGenerationInProgress) {
			s.logger(ctx).Info("scheduler.period.skipped",
				zap.String("job", JobGenerateInvoices),
				zap.String("period", p.String()),
				zap.String("reason", obsmetrics.SchedulerJobReasonLockHeld),
			)
			continue
		}
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.period.failed", JobGenerateInvoices, err,
				zap.String("period", p.String()),
			)
			continue
		}

		run.AddProcessed(result.Created)
		run.AddErrors(len(result.Failed))
		schedMetrics.AddBatchProcessed(JobGenerateInvoices, "invoice", result.Created)
		for _, failure := range result.Failed {
			s.logger(ctx).Warn("scheduler.room.failed",
				zap.String("job", JobGenerateInvoices),
				zap.String("period", p.String()),
				zap.String("room_id", failure.RoomID),
				zap.String("error", failure.Error),
			)
		}
	}

	return jobErr
}
