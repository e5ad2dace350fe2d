package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/energy"
	"github.com/smallbiznis/roomwatt/internal/identity"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"github.com/smallbiznis/roomwatt/internal/period"
	reportingdomain "github.com/smallbiznis/roomwatt/internal/reporting/domain"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	"github.com/smallbiznis/roomwatt/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const scanBatchSize = 500

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Authz    authorization.Service
	Rooms    roomdomain.Directory
	Repo     reportingdomain.Repository
	Metering *config.MeteringConfigHolder
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	authz    authorization.Service
	rooms    roomdomain.Directory
	repo     reportingdomain.Repository
	metering *config.MeteringConfigHolder
}

func New(p Params) reportingdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reporting.service"),
		authz:    p.Authz,
		rooms:    p.Rooms,
		repo:     p.Repo,
		metering: p.Metering,
	}
}

func (s *Service) ReadingHistory(ctx context.Context, actor identity.Actor, filter reportingdomain.ReadingFilter) (*reportingdomain.ReadingHistory, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectReading, authorization.ActionReadingViewAll); err != nil {
		return nil, err
	}

	page, err := pagination.New(filter.Page, pagination.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	cfg := s.metering.Get()
	q, err := readingQuery(filter.RoomID, filter.Date, filter.Month, cfg.Location())
	if err != nil {
		return nil, err
	}

	rows, info, err := s.readingPage(ctx, q, page, cfg.SamplingInterval)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(ctx, q, cfg.SamplingInterval)
	if err != nil {
		return nil, err
	}

	return &reportingdomain.ReadingHistory{
		Rows:    rows,
		Summary: summary,
		Page:    info,
	}, nil
}

func (s *Service) TenantReadingHistory(ctx context.Context, actor identity.Actor, month string, pageNumber int) (*reportingdomain.TenantReadingHistory, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectReading, authorization.ActionReadingViewOwn); err != nil {
		return nil, err
	}

	page, err := pagination.New(pageNumber, pagination.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	room, err := s.rooms.GetByOccupant(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	cfg := s.metering.Get()
	q, err := readingQuery("", "", month, cfg.Location())
	if err != nil {
		return nil, err
	}
	q.RoomID = &room.ID

	rows, info, err := s.readingPage(ctx, q, page, cfg.SamplingInterval)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(ctx, q, cfg.SamplingInterval)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	if len(summary) > 0 {
		total = summary[0].TotalKWh
	}
	return &reportingdomain.TenantReadingHistory{
		RoomID:     room.ID.String(),
		RoomNumber: room.Number,
		QuotaKWh:   room.QuotaKWh,
		TotalKWh:   total,
		Rows:       rows,
		Page:       info,
	}, nil
}

func (s *Service) readingPage(ctx context.Context, q reportingdomain.ReadingQuery, page pagination.Page, interval time.Duration) ([]reportingdomain.ReadingRow, pagination.PageInfo, error) {
	total, err := s.repo.CountReadings(ctx, s.db, q)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	info := page.Info(total)

	rows := []reportingdomain.ReadingRow{}
	if page.Beyond(total) {
		return rows, info, nil
	}

	records, err := s.repo.ListReadings(ctx, s.db, q, page.Limit(), page.Offset())
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	for _, rec := range records {
		rows = append(rows, toReadingRow(rec, interval))
	}
	return rows, info, nil
}

// summarize walks the whole filtered set in id-ordered batches and keeps a
// running total per room.
func (s *Service) summarize(ctx context.Context, q reportingdomain.ReadingQuery, interval time.Duration) ([]reportingdomain.RoomSummary, error) {
	byRoom := map[snowflake.ID]*reportingdomain.RoomSummary{}
	var after snowflake.ID
	for {
		batch, err := s.repo.ScanReadings(ctx, s.db, q, after, scanBatchSize)
		if err != nil {
			return nil, err
		}
		for _, rec := range batch {
			row := toReadingRow(rec, interval)
			sum, ok := byRoom[rec.RoomID]
			if !ok {
				sum = &reportingdomain.RoomSummary{
					RoomID:       row.RoomID,
					RoomNumber:   row.RoomNumber,
					TotalKWh:     decimal.Zero,
					OverQuotaKWh: decimal.Zero,
				}
				byRoom[rec.RoomID] = sum
			}
			sum.TotalKWh = sum.TotalKWh.Add(row.KWh)
			sum.OverQuotaKWh = sum.OverQuotaKWh.Add(row.OverQuotaKWh)
			sum.Readings++
		}
		if len(batch) < scanBatchSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	out := make([]reportingdomain.RoomSummary, 0, len(byRoom))
	for _, sum := range byRoom {
		out = append(out, *sum)
	}
	slices.SortFunc(out, func(a, b reportingdomain.RoomSummary) int {
		if c := strings.Compare(a.RoomNumber, b.RoomNumber); c != 0 {
			return c
		}
		return strings.Compare(a.RoomID, b.RoomID)
	})
	return out, nil
}

func (s *Service) ListInvoices(ctx context.Context, actor identity.Actor, filter reportingdomain.InvoiceFilter) (*reportingdomain.InvoiceList, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceViewAll); err != nil {
		return nil, err
	}

	page, err := pagination.New(filter.Page, pagination.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	q, err := invoiceQuery(filter.RoomID, filter.Month)
	if err != nil {
		return nil, err
	}
	return s.invoicePage(ctx, q, page)
}

func (s *Service) TenantInvoices(ctx context.Context, actor identity.Actor, month string, pageNumber int) (*reportingdomain.InvoiceList, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceViewOwn); err != nil {
		return nil, err
	}

	page, err := pagination.New(pageNumber, pagination.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	room, err := s.rooms.GetByOccupant(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	q, err := invoiceQuery("", month)
	if err != nil {
		return nil, err
	}
	q.RoomID = &room.ID
	return s.invoicePage(ctx, q, page)
}

func (s *Service) invoicePage(ctx context.Context, q reportingdomain.InvoiceQuery, page pagination.Page) (*reportingdomain.InvoiceList, error) {
	total, err := s.repo.CountInvoices(ctx, s.db, q)
	if err != nil {
		return nil, err
	}

	list := &reportingdomain.InvoiceList{
		Rows: []reportingdomain.InvoiceRow{},
		Page: page.Info(total),
	}
	if page.Beyond(total) {
		return list, nil
	}

	records, err := s.repo.ListInvoices(ctx, s.db, q, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	for i := range records {
		row := reportingdomain.InvoiceRow{Response: *invoicedomain.ToResponse(&records[i].Invoice)}
		if records[i].RoomNumber != nil {
			row.RoomNumber = *records[i].RoomNumber
		}
		list.Rows = append(list.Rows, row)
	}
	return list, nil
}

func readingQuery(roomID, date, month string, loc *time.Location) (reportingdomain.ReadingQuery, error) {
	var q reportingdomain.ReadingQuery

	id, err := parseRoomID(roomID)
	if err != nil {
		return q, err
	}
	q.RoomID = id

	var start, end time.Time
	switch {
	case strings.TrimSpace(date) != "":
		day, err := period.ParseDate(date)
		if err != nil {
			return q, err
		}
		start, end = day.Bounds(loc)
	case strings.TrimSpace(month) != "":
		p, err := period.Parse(month)
		if err != nil {
			return q, err
		}
		start, end = p.Bounds(loc)
	default:
		return q, nil
	}
	q.Start = &start
	q.End = &end
	return q, nil
}

func invoiceQuery(roomID, month string) (reportingdomain.InvoiceQuery, error) {
	var q reportingdomain.InvoiceQuery
	id, err := parseRoomID(roomID)
	if err != nil {
		return q, err
	}
	q.RoomID = id

	if strings.TrimSpace(month) != "" {
		p, err := period.Parse(month)
		if err != nil {
			return q, err
		}
		q.Period = p.String()
	}
	return q, nil
}

func parseRoomID(raw string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return nil, reportingdomain.ErrInvalidRoom
	}
	return &id, nil
}

func toReadingRow(rec reportingdomain.ReadingRecord, interval time.Duration) reportingdomain.ReadingRow {
	kwh := energy.ReadingKWh(rec.Watts, interval)
	// a deleted room has no quota left, so the whole reading counts as over quota
	quota := decimal.Zero
	if rec.QuotaKWh.Valid {
		quota = rec.QuotaKWh.Decimal
	}
	over := energy.OverQuota(kwh, quota)
	row := reportingdomain.ReadingRow{
		ID:           rec.ID.String(),
		RoomID:       rec.RoomID.String(),
		Watts:        rec.Watts,
		KWh:          kwh,
		OverQuotaKWh: over,
		RecordedAt:   rec.RecordedAt.UTC(),
	}
	if rec.RoomNumber != nil {
		row.RoomNumber = *rec.RoomNumber
	}
	return row
}
