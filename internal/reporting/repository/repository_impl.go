package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	reportingdomain "github.com/smallbiznis/roomwatt/internal/reporting/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() reportingdomain.Repository {
	return &repo{}
}

const readingColumns = `rd.id AS id,
		       rd.room_id AS room_id,
		       r.number AS room_number,
		       r.quota_kwh AS quota_kwh,
		       rd.watts AS watts,
		       rd.recorded_at AS recorded_at`

func readingWhere(q reportingdomain.ReadingQuery) (string, []any) {
	clauses := []string{"1 = 1"}
	args := []any{}
	if q.RoomID != nil {
		clauses = append(clauses, "rd.room_id = ?")
		args = append(args, *q.RoomID)
	}
	if q.Start != nil {
		clauses = append(clauses, "rd.recorded_at >= ?")
		args = append(args, q.Start.UTC())
	}
	if q.End != nil {
		clauses = append(clauses, "rd.recorded_at < ?")
		args = append(args, q.End.UTC())
	}
	return strings.Join(clauses, " AND "), args
}

func (r *repo) CountReadings(ctx context.Context, db *gorm.DB, q reportingdomain.ReadingQuery) (int64, error) {
	where, args := readingWhere(q)
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM readings rd WHERE `+where,
		args...,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) ListReadings(ctx context.Context, db *gorm.DB, q reportingdomain.ReadingQuery, limit, offset int) ([]reportingdomain.ReadingRecord, error) {
	where, args := readingWhere(q)
	args = append(args, limit, offset)

	var rows []reportingdomain.ReadingRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+readingColumns+`
		 FROM readings rd
		 LEFT JOIN rooms r ON r.id = rd.room_id
		 WHERE `+where+`
		 ORDER BY rd.recorded_at DESC, rd.id DESC
		 LIMIT ? OFFSET ?`,
		args...,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ScanReadings(ctx context.Context, db *gorm.DB, q reportingdomain.ReadingQuery, afterID snowflake.ID, limit int) ([]reportingdomain.ReadingRecord, error) {
	where, args := readingWhere(q)
	args = append(args, afterID, limit)

	var rows []reportingdomain.ReadingRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+readingColumns+`
		 FROM readings rd
		 LEFT JOIN rooms r ON r.id = rd.room_id
		 WHERE `+where+` AND rd.id > ?
		 ORDER BY rd.id ASC
		 LIMIT ?`,
		args...,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func invoiceWhere(q reportingdomain.InvoiceQuery) (string, []any) {
	clauses := []string{"1 = 1"}
	args := []any{}
	if q.RoomID != nil {
		clauses = append(clauses, "i.room_id = ?")
		args = append(args, *q.RoomID)
	}
	if q.Period != "" {
		clauses = append(clauses, "i.period = ?")
		args = append(args, q.Period)
	}
	return strings.Join(clauses, " AND "), args
}

func (r *repo) CountInvoices(ctx context.Context, db *gorm.DB, q reportingdomain.InvoiceQuery) (int64, error) {
	where, args := invoiceWhere(q)
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices i WHERE `+where,
		args...,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) ListInvoices(ctx context.Context, db *gorm.DB, q reportingdomain.InvoiceQuery, limit, offset int) ([]reportingdomain.InvoiceRecord, error) {
	where, args := invoiceWhere(q)
	args = append(args, limit, offset)

	var rows []reportingdomain.InvoiceRecord
	err := db.WithContext(ctx).Raw(
		`SELECT i.*, r.number AS room_number
		 FROM invoices i
		 LEFT JOIN rooms r ON r.id = i.room_id
		 WHERE `+where+`
		 ORDER BY i.period DESC, i.id DESC
		 LIMIT ? OFFSET ?`,
		args...,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) LatestInvoices(ctx context.Context, db *gorm.DB, roomIDs []snowflake.ID) (map[snowflake.ID]invoicedomain.Invoice, error) {
	out := make(map[snowflake.ID]invoicedomain.Invoice, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}

	var rows []invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT i.*
		 FROM invoices i
		 WHERE i.room_id IN ?
		   AND i.id = (
		     SELECT i2.id FROM invoices i2
		     WHERE i2.room_id = i.room_id
		     ORDER BY i2.period DESC, i2.id DESC
		     LIMIT 1
		   )`,
		roomIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.RoomID] = row
	}
	return out, nil
}
