package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "period"}},
			DoNothing: true,
		}).
		Create(invoice)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ExistsForPeriod(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM invoices WHERE room_id = ? AND period = ?`,
		roomID,
		period,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT id, number, room_id, period, total_kwh, overage_kwh, amount_due, status,
		        proof_key, proof_url, last_upload_at, reviewed_at, snapshot, created_at, updated_at
		 FROM invoices
		 WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) AttachProof(ctx context.Context, db *gorm.DB, id snowflake.ID, proof invoicedomain.ProofUpdate) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET proof_key = ?, proof_url = ?, last_upload_at = ?, status = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		proof.Key,
		proof.URL,
		proof.UploadedAt,
		invoicedomain.InvoiceStatusPending,
		proof.UploadedAt,
		id,
		invoicedomain.InvoiceStatusPending,
		invoicedomain.InvoiceStatusRejected,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Review(ctx context.Context, db *gorm.DB, id snowflake.ID, status invoicedomain.InvoiceStatus, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, reviewed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		at,
		at,
		id,
		invoicedomain.InvoiceStatusPending,
	)
	return result.RowsAffected, result.Error
}
