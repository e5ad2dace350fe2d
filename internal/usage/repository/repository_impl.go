package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/smallbiznis/roomwatt/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reading *usagedomain.Reading) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO readings (id, room_id, watts, recorded_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		reading.ID,
		reading.RoomID,
		reading.Watts,
		reading.RecordedAt,
		reading.CreatedAt,
	).Error
}

func (r *repo) SumWatts(ctx context.Context, db *gorm.DB, roomID snowflake.ID, start, end time.Time) (usagedomain.WattsSum, error) {
	var row usagedomain.WattsSum
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(watts), 0) AS watts, COUNT(*) AS count
		 FROM readings
		 WHERE room_id = ? AND recorded_at >= ? AND recorded_at < ?`,
		roomID,
		start.UTC(),
		end.UTC(),
	).Scan(&row).Error
	if err != nil {
		return usagedomain.WattsSum{}, err
	}
	return row, nil
}

func (r *repo) Recent(ctx context.Context, db *gorm.DB, roomID snowflake.ID, limit int) ([]usagedomain.Reading, error) {
	if limit <= 0 {
		limit = 7
	}
	var items []usagedomain.Reading
	err := db.WithContext(ctx).Raw(
		`SELECT id, room_id, watts, recorded_at, created_at
		 FROM readings
		 WHERE room_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		roomID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
