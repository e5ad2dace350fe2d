package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"gorm.io/gorm"
)

// ReadingQuery is a resolved reading filter; nil fields are unbounded.
type ReadingQuery struct {
	RoomID *snowflake.ID
	Start  *time.Time
	End    *time.Time
}

type InvoiceQuery struct {
	RoomID *snowflake.ID
	Period string
}

// ReadingRecord is a reading joined with the room it belongs to. Room
// columns are null once the room has been deleted.
type ReadingRecord struct {
	ID         snowflake.ID        `gorm:"column:id"`
	RoomID     snowflake.ID        `gorm:"column:room_id"`
	RoomNumber *string             `gorm:"column:room_number"`
	QuotaKWh   decimal.NullDecimal `gorm:"column:quota_kwh"`
	Watts      float64             `gorm:"column:watts"`
	RecordedAt time.Time           `gorm:"column:recorded_at"`
}

type InvoiceRecord struct {
	invoicedomain.Invoice
	RoomNumber *string `gorm:"column:room_number"`
}

type Repository interface {
	CountReadings(ctx context.Context, db *gorm.DB, q ReadingQuery) (int64, error)
	ListReadings(ctx context.Context, db *gorm.DB, q ReadingQuery, limit, offset int) ([]ReadingRecord, error)
	// ScanReadings returns up to limit readings with id greater than afterID in
	// id order, for batched walks over a whole filtered set.
	ScanReadings(ctx context.Context, db *gorm.DB, q ReadingQuery, afterID snowflake.ID, limit int) ([]ReadingRecord, error)

	CountInvoices(ctx context.Context, db *gorm.DB, q InvoiceQuery) (int64, error)
	ListInvoices(ctx context.Context, db *gorm.DB, q InvoiceQuery, limit, offset int) ([]InvoiceRecord, error)
	LatestInvoices(ctx context.Context, db *gorm.DB, roomIDs []snowflake.ID) (map[snowflake.ID]invoicedomain.Invoice, error)
}
