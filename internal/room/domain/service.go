package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/identity"
)

type Service interface {
	Directory

	Create(ctx context.Context, actor identity.Actor, req CreateRequest) (*Response, error)
	Update(ctx context.Context, actor identity.Actor, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, actor identity.Actor, id string) error
	AssignOccupant(ctx context.Context, actor identity.Actor, id string, occupantID string) (*Response, error)
	SetSwitch(ctx context.Context, actor identity.Actor, id string, switchNo int, on bool) (*Response, error)
	Switches(ctx context.Context, actor identity.Actor, id string) (*SwitchState, error)
	Get(ctx context.Context, actor identity.Actor, id string) (*Response, error)
	List(ctx context.Context, actor identity.Actor) ([]Response, error)
}

// Directory is the read-only room lookup used by aggregation, billing and reports.
type Directory interface {
	ListAll(ctx context.Context) ([]Room, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Room, error)
	GetByOccupant(ctx context.Context, occupantID string) (*Room, error)
}

type CreateRequest struct {
	Number     string          `json:"number" binding:"required"`
	QuotaKWh   decimal.Decimal `json:"quota_kwh"`
	TariffRate decimal.Decimal `json:"tariff_rate"`
}

type UpdateRequest struct {
	ID         string           `json:"-"`
	Number     *string          `json:"number,omitempty"`
	QuotaKWh   *decimal.Decimal `json:"quota_kwh,omitempty"`
	TariffRate *decimal.Decimal `json:"tariff_rate,omitempty"`
}

type Response struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	QuotaKWh   decimal.Decimal `json:"quota_kwh"`
	TariffRate decimal.Decimal `json:"tariff_rate"`
	OccupantID *string         `json:"occupant_id,omitempty"`
	Switch1On  bool            `json:"switch1_on"`
	Switch2On  bool            `json:"switch2_on"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type SwitchState struct {
	RoomID    string `json:"room_id"`
	Switch1On bool   `json:"switch1_on"`
	Switch2On bool   `json:"switch2_on"`
}

var (
	ErrInvalidNumber    = errors.New("invalid_room_number")
	ErrInvalidQuota     = errors.New("invalid_quota")
	ErrInvalidTariff    = errors.New("invalid_tariff")
	ErrInvalidSwitch    = errors.New("invalid_switch")
	ErrInvalidOccupant  = errors.New("invalid_occupant")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
	ErrDuplicateNumber  = errors.New("duplicate_room_number")
	ErrOccupantAssigned = errors.New("occupant_already_assigned")
	ErrNoRoom           = errors.New("no_room_assigned")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}

func ToResponse(r *Room) *Response {
	return &Response{
		ID:         r.ID.String(),
		Number:     r.Number,
		QuotaKWh:   r.QuotaKWh,
		TariffRate: r.TariffRate,
		OccupantID: r.OccupantID,
		Switch1On:  r.Switch1On,
		Switch2On:  r.Switch2On,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
