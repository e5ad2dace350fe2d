package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	billingdomain "github.com/smallbiznis/roomwatt/internal/billing/domain"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/energy"
	"github.com/smallbiznis/roomwatt/internal/identity"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"github.com/smallbiznis/roomwatt/internal/invoice/format"
	obsmetrics "github.com/smallbiznis/roomwatt/internal/observability/metrics"
	"github.com/smallbiznis/roomwatt/internal/period"
	"github.com/smallbiznis/roomwatt/internal/ratelimit"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	usagedomain "github.com/smallbiznis/roomwatt/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const generationLockKey = "billing:generate:%s"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Authz    authorization.Service
	Rooms    roomdomain.Directory
	Usage    usagedomain.Aggregator
	Invoices invoicedomain.Repository
	Metering *config.MeteringConfigHolder
	Locker   *ratelimit.Locker   `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	authz    authorization.Service
	rooms    roomdomain.Directory
	usage    usagedomain.Aggregator
	invoices invoicedomain.Repository
	metering *config.MeteringConfigHolder
	locker   *ratelimit.Locker
	metrics  *obsmetrics.Metrics

	concurrency int
	lockTTL     time.Duration
}

func New(p Params) billingdomain.Service {
	concurrency := p.Config.Scheduler.BillingConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	lockTTL := p.Config.Scheduler.GenerationLockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("billing.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		authz:       p.Authz,
		rooms:       p.Rooms,
		usage:       p.Usage,
		invoices:    p.Invoices,
		metering:    p.Metering,
		locker:      p.Locker,
		metrics:     p.Metrics,
		concurrency: concurrency,
		lockTTL:     lockTTL,
	}
}

func (s *Service) GenerateMonthlyInvoices(ctx context.Context, actor identity.Actor, p period.Period) (billingdomain.GenerateResult, error) {
	result := billingdomain.GenerateResult{Period: p.String(), Failed: []billingdomain.RoomFailure{}}

	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceGenerate); err != nil {
		return result, err
	}
	if !p.Valid() {
		return result, period.ErrInvalidPeriod
	}

	release, err := s.acquire(ctx, p)
	if err != nil {
		return result, err
	}
	defer release()

	rooms, err := s.rooms.ListAll(ctx)
	if err != nil {
		return result, fmt.Errorf("list rooms: %w", err)
	}

	cfg := s.metering.Get()
	started := s.clock.Now()
	s.log.Info("invoice generation started",
		zap.String("period", p.String()),
		zap.Int("rooms", len(rooms)),
		zap.String("actor_role", string(actor.Role)),
		zap.String("actor_id", actor.ID),
	)

	var mu sync.Mutex
	tally := func(room roomdomain.Room, outcome billingdomain.Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case billingdomain.OutcomeCreated:
			result.Created++
		case billingdomain.OutcomeSkipped:
			result.Skipped++
		case billingdomain.OutcomeAlreadyBilled:
			result.AlreadyBilled++
		default:
			result.Failed = append(result.Failed, billingdomain.RoomFailure{
				RoomID: room.ID.String(),
				Error:  err.Error(),
			})
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, room := range rooms {
		if err := ctx.Err(); err != nil {
			// rooms never scheduled are reported, not silently dropped
			tally(room, billingdomain.OutcomeFailed, err)
			continue
		}
		g.Go(func() error {
			outcome, err := s.billRoom(ctx, room, p, cfg)
			if err != nil {
				s.log.Warn("room billing failed",
					zap.String("room_id", room.ID.String()),
					zap.String("period", p.String()),
					zap.Error(err),
				)
			}
			tally(room, outcome, err)
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.RecordInvoicesGenerated(ctx, string(billingdomain.OutcomeCreated), result.Created)
	s.metrics.RecordInvoicesGenerated(ctx, string(billingdomain.OutcomeSkipped), result.Skipped)
	s.metrics.RecordInvoicesGenerated(ctx, string(billingdomain.OutcomeAlreadyBilled), result.AlreadyBilled)
	s.metrics.RecordInvoicesGenerated(ctx, string(billingdomain.OutcomeFailed), len(result.Failed))

	s.log.Info("invoice generation finished",
		zap.String("period", p.String()),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("already_billed", result.AlreadyBilled),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("duration", s.clock.Now().Sub(started)),
	)
	return result, nil
}

func (s *Service) billRoom(ctx context.Context, room roomdomain.Room, p period.Period, cfg config.MeteringConfig) (billingdomain.Outcome, error) {
	total, err := s.usage.AggregateConsumption(ctx, room.ID, p)
	if err != nil {
		return billingdomain.OutcomeFailed, fmt.Errorf("aggregate consumption: %w", err)
	}
	if !energy.Exceeds(total, room.QuotaKWh) {
		return billingdomain.OutcomeSkipped, nil
	}

	exists, err := s.invoices.ExistsForPeriod(ctx, s.db, room.ID, p.String())
	if err != nil {
		return billingdomain.OutcomeFailed, fmt.Errorf("check existing invoice: %w", err)
	}
	if exists {
		return billingdomain.OutcomeAlreadyBilled, nil
	}

	number, err := format.FormatInvoiceNumber(cfg.InvoiceNumberTemplate, p, room.Number)
	if err != nil {
		return billingdomain.OutcomeFailed, err
	}

	overage := energy.Overage(total, room.QuotaKWh)
	now := s.clock.Now().UTC()
	invoice := &invoicedomain.Invoice{
		ID:         s.genID.Generate(),
		Number:     number,
		RoomID:     room.ID,
		Period:     p.String(),
		TotalKWh:   total,
		OverageKWh: overage,
		AmountDue:  energy.Amount(overage, room.TariffRate),
		Status:     invoicedomain.InvoiceStatusPending,
		Snapshot: datatypes.JSONMap{
			"room_number":       room.Number,
			"total_kwh":         total.String(),
			"quota_kwh":         room.QuotaKWh.String(),
			"tariff_rate":       room.TariffRate.String(),
			"sampling_interval": cfg.SamplingInterval.String(),
			"timezone":          cfg.Timezone,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	inserted, err := s.invoices.InsertIfAbsent(ctx, s.db, invoice)
	if err != nil {
		return billingdomain.OutcomeFailed, fmt.Errorf("insert invoice: %w", err)
	}
	if !inserted {
		// another run won the race; the unique (room, period) index kept one row
		return billingdomain.OutcomeAlreadyBilled, nil
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number),
		zap.String("room_id", room.ID.String()),
		zap.String("period", invoice.Period),
		zap.String("amount_due", invoice.AmountDue.String()),
	)
	return billingdomain.OutcomeCreated, nil
}

// acquire takes the per-period redis lock when redis is configured. Lock
// errors are logged and ignored; the unique index still prevents duplicates.
func (s *Service) acquire(ctx context.Context, p period.Period) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := fmt.Sprintf(generationLockKey, p.String())
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return noop, err
		}
		s.log.Warn("generation lock unavailable, continuing without it", zap.String("key", key), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return noop, billingdomain.ErrGenerationInProgress
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("generation lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
