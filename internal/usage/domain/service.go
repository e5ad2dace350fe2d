package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/identity"
	"github.com/smallbiznis/roomwatt/internal/period"
)

type Service interface {
	Aggregator

	Record(ctx context.Context, actor identity.Actor, req RecordRequest) (*Response, error)
	Recent(ctx context.Context, roomID snowflake.ID, limit int) ([]Response, error)
}

// Aggregator rolls raw readings up into a room's energy consumption.
type Aggregator interface {
	AggregateConsumption(ctx context.Context, roomID snowflake.ID, p period.Period) (decimal.Decimal, error)
}

type RecordRequest struct {
	RoomID     string     `json:"room_id" binding:"required"`
	Watts      *float64   `json:"watts" binding:"required"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

type Response struct {
	ID         string          `json:"id"`
	RoomID     string          `json:"room_id"`
	Watts      float64         `json:"watts"`
	KWh        decimal.Decimal `json:"kwh"`
	RecordedAt time.Time       `json:"recorded_at"`
}

const MaxRecentLimit = 100

var (
	ErrInvalidRoom       = errors.New("invalid_room")
	ErrInvalidWatts      = errors.New("invalid_watts")
	ErrInvalidRecordedAt = errors.New("invalid_recorded_at")
)
