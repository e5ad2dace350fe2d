package service

import (
	"context"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	"github.com/smallbiznis/roomwatt/internal/identity"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	reportingdomain "github.com/smallbiznis/roomwatt/internal/reporting/domain"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
)

func (s *Service) OwnerDashboard(ctx context.Context, actor identity.Actor) (*reportingdomain.OwnerDashboard, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectDashboard, authorization.ActionDashboardOwner); err != nil {
		return nil, err
	}

	rooms, err := s.rooms.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(rooms, func(a, b roomdomain.Room) int {
		return strings.Compare(a.Number, b.Number)
	})

	ids := make([]snowflake.ID, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	latest, err := s.repo.LatestInvoices(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	out := &reportingdomain.OwnerDashboard{Rooms: make([]reportingdomain.RoomOverview, 0, len(rooms))}
	for _, room := range rooms {
		out.Rooms = append(out.Rooms, overview(room, latest))
	}
	return out, nil
}

func (s *Service) TenantDashboard(ctx context.Context, actor identity.Actor) (*reportingdomain.TenantDashboard, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectDashboard, authorization.ActionDashboardTenant); err != nil {
		return nil, err
	}

	room, err := s.rooms.GetByOccupant(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.LatestInvoices(ctx, s.db, []snowflake.ID{room.ID})
	if err != nil {
		return nil, err
	}

	records, err := s.repo.ListReadings(ctx, s.db, reportingdomain.ReadingQuery{RoomID: &room.ID}, reportingdomain.RecentReadingsLimit, 0)
	if err != nil {
		return nil, err
	}
	interval := s.metering.Get().SamplingInterval
	recent := make([]reportingdomain.ReadingRow, 0, len(records))
	for _, rec := range records {
		recent = append(recent, toReadingRow(rec, interval))
	}

	return &reportingdomain.TenantDashboard{
		Room:           overview(*room, latest),
		RecentReadings: recent,
	}, nil
}

func overview(room roomdomain.Room, latest map[snowflake.ID]invoicedomain.Invoice) reportingdomain.RoomOverview {
	out := reportingdomain.RoomOverview{
		ID:         room.ID.String(),
		Number:     room.Number,
		QuotaKWh:   room.QuotaKWh,
		TariffRate: room.TariffRate,
		OccupantID: room.OccupantID,
		Switch1On:  room.Switch1On,
		Switch2On:  room.Switch2On,
	}
	if inv, ok := latest[room.ID]; ok {
		out.LatestInvoice = invoicedomain.ToResponse(&inv)
	}
	return out
}
