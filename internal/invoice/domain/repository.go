package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent creates the invoice unless one already exists for its
	// (room, period); it reports whether a row was written.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	ExistsForPeriod(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period string) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// AttachProof stores the proof and moves the invoice back to PENDING when it
	// is PENDING or REJECTED. It returns the affected row count.
	AttachProof(ctx context.Context, db *gorm.DB, id snowflake.ID, proof ProofUpdate) (int64, error)
	// Review moves a PENDING invoice to status. It returns the affected row count.
	Review(ctx context.Context, db *gorm.DB, id snowflake.ID, status InvoiceStatus, at time.Time) (int64, error)
}

type ProofUpdate struct {
	Key        string
	URL        string
	UploadedAt time.Time
}
