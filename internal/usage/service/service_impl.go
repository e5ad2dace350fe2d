package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/energy"
	"github.com/smallbiznis/roomwatt/internal/identity"
	obsmetrics "github.com/smallbiznis/roomwatt/internal/observability/metrics"
	"github.com/smallbiznis/roomwatt/internal/period"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	usagedomain "github.com/smallbiznis/roomwatt/internal/usage/domain"
	"github.com/smallbiznis/roomwatt/internal/usage/liveevents"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Authz      authorization.Service
	Rooms      roomdomain.Directory
	Repo       usagedomain.Repository
	Metering   *config.MeteringConfigHolder
	Metrics    *obsmetrics.Metrics `optional:"true"`
	LiveEvents *liveevents.Hub     `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	authz      authorization.Service
	rooms      roomdomain.Directory
	repo       usagedomain.Repository
	metering   *config.MeteringConfigHolder
	metrics    *obsmetrics.Metrics
	liveEvents *liveevents.Hub
}

func New(p Params) usagedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("usage.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		authz:      p.Authz,
		rooms:      p.Rooms,
		repo:       p.Repo,
		metering:   p.Metering,
		metrics:    p.Metrics,
		liveEvents: p.LiveEvents,
	}
}

// Record appends a power sample for a room. The reading is stored as reported;
// conversion to energy happens when readings are aggregated.
func (s *Service) Record(ctx context.Context, actor identity.Actor, req usagedomain.RecordRequest) (*usagedomain.Response, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectReading, authorization.ActionReadingIngest); err != nil {
		return nil, err
	}

	roomID, err := parseRoomID(req.RoomID)
	if err != nil {
		return nil, err
	}
	if req.Watts == nil {
		return nil, usagedomain.ErrInvalidWatts
	}
	watts := *req.Watts
	if math.IsNaN(watts) || math.IsInf(watts, 0) || watts < 0 {
		return nil, usagedomain.ErrInvalidWatts
	}

	now := s.clock.Now().UTC()
	recordedAt := now
	if req.RecordedAt != nil {
		if req.RecordedAt.IsZero() {
			return nil, usagedomain.ErrInvalidRecordedAt
		}
		recordedAt = req.RecordedAt.UTC()
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	reading := &usagedomain.Reading{
		ID:         s.genID.Generate(),
		RoomID:     room.ID,
		Watts:      watts,
		RecordedAt: recordedAt,
		CreatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, reading); err != nil {
		return nil, err
	}

	s.metrics.RecordReadingIngested(ctx, string(actor.Role))

	resp := s.toResponse(reading, s.metering.Get().SamplingInterval)
	s.emitLiveReading(resp, actor)
	return resp, nil
}

// AggregateConsumption returns the room's energy use in kWh for the calendar
// period, rounded to three places. A room without readings consumed zero.
func (s *Service) AggregateConsumption(ctx context.Context, roomID snowflake.ID, p period.Period) (decimal.Decimal, error) {
	if roomID == 0 {
		return decimal.Zero, usagedomain.ErrInvalidRoom
	}
	if !p.Valid() {
		return decimal.Zero, period.ErrInvalidPeriod
	}

	cfg := s.metering.Get()
	start, end := p.Bounds(cfg.Location())
	sum, err := s.repo.SumWatts(ctx, s.db, roomID, start, end)
	if err != nil {
		return decimal.Zero, err
	}

	total := energy.Total(decimal.NewFromFloat(sum.Watts), cfg.SamplingInterval)
	s.log.Debug("consumption aggregated",
		zap.String("room_id", roomID.String()),
		zap.String("period", p.String()),
		zap.Int64("readings", sum.Count),
		zap.Duration("sampling_interval", cfg.SamplingInterval),
		zap.String("total_kwh", total.String()),
	)
	return total, nil
}

// Recent lists the newest readings of a room, newest first.
func (s *Service) Recent(ctx context.Context, roomID snowflake.ID, limit int) ([]usagedomain.Response, error) {
	if roomID == 0 {
		return nil, usagedomain.ErrInvalidRoom
	}
	if limit <= 0 || limit > usagedomain.MaxRecentLimit {
		limit = usagedomain.MaxRecentLimit
	}

	items, err := s.repo.Recent(ctx, s.db, roomID, limit)
	if err != nil {
		return nil, err
	}

	interval := s.metering.Get().SamplingInterval
	resp := make([]usagedomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *s.toResponse(&items[i], interval))
	}
	return resp, nil
}

func (s *Service) toResponse(r *usagedomain.Reading, interval time.Duration) *usagedomain.Response {
	return &usagedomain.Response{
		ID:         r.ID.String(),
		RoomID:     r.RoomID.String(),
		Watts:      r.Watts,
		KWh:        energy.ReadingKWh(r.Watts, interval),
		RecordedAt: r.RecordedAt,
	}
}

func (s *Service) emitLiveReading(resp *usagedomain.Response, actor identity.Actor) {
	if s.liveEvents == nil || resp == nil {
		return
	}
	source := liveevents.SourceDevice
	if actor.Is(identity.RoleSystem) {
		source = liveevents.SourceSystem
	}
	s.liveEvents.Publish(resp.RoomID, liveevents.LiveEvent{
		ReadingID:  resp.ID,
		RoomID:     resp.RoomID,
		Watts:      resp.Watts,
		KWh:        resp.KWh.String(),
		RecordedAt: resp.RecordedAt.UTC().Format(time.RFC3339Nano),
		Source:     source,
	})
}

func parseRoomID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, usagedomain.ErrInvalidRoom
	}
	return id, nil
}
