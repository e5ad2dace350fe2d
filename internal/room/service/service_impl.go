package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/identity"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	"github.com/smallbiznis/roomwatt/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxRoomNumberLength = 32

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Authz authorization.Service
	Repo  roomdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	authz authorization.Service
	repo  roomdomain.Repository
}

func New(p Params) roomdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("room.service"),
		genID: p.GenID,
		clock: p.Clock,
		authz: p.Authz,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, actor identity.Actor, req roomdomain.CreateRequest) (*roomdomain.Response, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectRoom, authorization.ActionRoomCreate); err != nil {
		return nil, err
	}

	number, err := normalizeNumber(req.Number)
	if err != nil {
		return nil, err
	}
	if !validScaled(req.QuotaKWh, roomdomain.QuotaScale) {
		return nil, roomdomain.ErrInvalidQuota
	}
	if !validScaled(req.TariffRate, roomdomain.TariffScale) {
		return nil, roomdomain.ErrInvalidTariff
	}

	existing, err := s.repo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, roomdomain.ErrDuplicateNumber
	}

	now := s.clock.Now()
	room := &roomdomain.Room{
		ID:         s.genID.Generate(),
		Number:     number,
		QuotaKWh:   req.QuotaKWh,
		TariffRate: req.TariffRate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, room); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, roomdomain.ErrDuplicateNumber
		}
		return nil, err
	}

	s.log.Info("room created",
		zap.String("room_id", room.ID.String()),
		zap.String("number", room.Number),
		zap.String("actor_id", actor.ID),
	)
	return roomdomain.ToResponse(room), nil
}

func (s *Service) Update(ctx context.Context, actor identity.Actor, req roomdomain.UpdateRequest) (*roomdomain.Response, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectRoom, authorization.ActionRoomUpdate); err != nil {
		return nil, err
	}

	room, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Number != nil {
		number, err := normalizeNumber(*req.Number)
		if err != nil {
			return nil, err
		}
		if number != room.Number {
			other, err := s.repo.FindByNumber(ctx, s.db, number)
			if err != nil {
				return nil, err
			}
			if other != nil && other.ID != room.ID {
				return nil, roomdomain.ErrDuplicateNumber
			}
		}
		room.Number = number
	}
	if req.QuotaKWh != nil {
		if !validScaled(*req.QuotaKWh, roomdomain.QuotaScale) {
			return nil, roomdomain.ErrInvalidQuota
		}
		room.QuotaKWh = *req.QuotaKWh
	}
	if req.TariffRate != nil {
		if !validScaled(*req.TariffRate, roomdomain.TariffScale) {
			return nil, roomdomain.ErrInvalidTariff
		}
		room.TariffRate = *req.TariffRate
	}

	if err := s.save(ctx, room, roomdomain.ErrDuplicateNumber); err != nil {
		return nil, err
	}
	return roomdomain.ToResponse(room), nil
}

// Delete removes the room. Readings and invoices keep the id for history.
func (s *Service) Delete(ctx context.Context, actor identity.Actor, id string) error {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectRoom, authorization.ActionRoomDelete); err != nil {
		return err
	}

	roomID, err := parseID(id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, s.db, roomID)
	if err != nil {
		return err
	}
	if !deleted {
		return roomdomain.ErrNotFound
	}

	s.log.Info("room deleted", zap.String("room_id", roomID.String()), zap.String("actor_id", actor.ID))
	return nil
}

// AssignOccupant sets the tenant living in the room; an empty id vacates it.
func (s *Service) AssignOccupant(ctx context.Context, actor identity.Actor, id string, occupantID string) (*roomdomain.Response, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectRoom, authorization.ActionRoomAssign); err != nil {
		return nil, err
	}

	room, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	occupantID = strings.TrimSpace(occupantID)
	if occupantID == "" {
		room.OccupantID = nil
	} else {
		if len(occupantID) > 64 {
			return nil, roomdomain.ErrInvalidOccupant
		}
		current, err := s.repo.FindByOccupant(ctx, s.db, occupantID)
		if err != nil {
			return nil, err
		}
		if current != nil && current.ID != room.ID {
			return nil, roomdomain.ErrOccupantAssigned
		}
		room.OccupantID = &occupantID
	}

	if err := s.save(ctx, room, roomdomain.ErrOccupantAssigned); err != nil {
		return nil, err
	}
	return roomdomain.ToResponse(room), nil
}

func (s *Service) SetSwitch(ctx context.Context, actor identity.Actor, id string, switchNo int, on bool) (*roomdomain.Response, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectRoom, authorization.ActionRoomSwitch); err != nil {
		return nil, err
	}

	room, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch switchNo {
	case 1:
		room.Switch1On = on
	case 2:
		room.Switch2On = on
	default:
		return nil, roomdomain.ErrInvalidSwitch
	}

	if err := s.save(ctx, room, nil); err != nil {
		return nil, err
	}
	return roomdomain.ToResponse(room), nil
}

// Switches reports the desired relay states polled by the room's device.
func (s *Service) Switches(ctx context.Context, actor identity.Actor, id string) (*roomdomain.SwitchState, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectRoom, authorization.ActionRoomSwitchView); err != nil {
		return nil, err
	}

	room, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &roomdomain.SwitchState{
		RoomID:    room.ID.String(),
		Switch1On: room.Switch1On,
		Switch2On: room.Switch2On,
	}, nil
}

func (s *Service) Get(ctx context.Context, actor identity.Actor, id string) (*roomdomain.Response, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectRoom, authorization.ActionRoomView); err != nil {
		return nil, err
	}

	room, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return roomdomain.ToResponse(room), nil
}

func (s *Service) List(ctx context.Context, actor identity.Actor) ([]roomdomain.Response, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectRoom, authorization.ActionRoomView); err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]roomdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *roomdomain.ToResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) ListAll(ctx context.Context) ([]roomdomain.Room, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*roomdomain.Room, error) {
	if id == 0 {
		return nil, roomdomain.ErrInvalidID
	}
	room, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, roomdomain.ErrNotFound
	}
	return room, nil
}

func (s *Service) GetByOccupant(ctx context.Context, occupantID string) (*roomdomain.Room, error) {
	occupantID = strings.TrimSpace(occupantID)
	if occupantID == "" {
		return nil, roomdomain.ErrNoRoom
	}
	room, err := s.repo.FindByOccupant(ctx, s.db, occupantID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, roomdomain.ErrNoRoom
	}
	return room, nil
}

func (s *Service) load(ctx context.Context, id string) (*roomdomain.Room, error) {
	roomID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, roomID)
}

func (s *Service) save(ctx context.Context, room *roomdomain.Room, conflict error) error {
	room.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, room); err != nil {
		if conflict != nil && db.IsDuplicateKeyErr(err) {
			return conflict
		}
		return err
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := roomdomain.ParseID(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, roomdomain.ErrInvalidID
	}
	return id, nil
}

func normalizeNumber(raw string) (string, error) {
	number := strings.TrimSpace(raw)
	if number == "" || len(number) > maxRoomNumberLength {
		return "", roomdomain.ErrInvalidNumber
	}
	return number, nil
}


// validScaled accepts non-negative values that fit the column scale exactly.
func validScaled(v decimal.Decimal, scale int32) bool {
	return !v.IsNegative() && v.Equal(v.Round(scale))
}
