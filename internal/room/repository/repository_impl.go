package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	"github.com/smallbiznis/roomwatt/pkg/repository"
	"gorm.io/gorm"
)

const roomColumns = `id, number, quota_kwh, tariff_rate, occupant_id, switch1_on, switch2_on, created_at, updated_at`

type repo struct {
	store repository.Repository[roomdomain.Room]
}

func Provide(db *gorm.DB) roomdomain.Repository {
	return &repo{store: repository.ProvideStore[roomdomain.Room](db)}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, room *roomdomain.Room) error {
	return r.store.WithTrx(db).Create(ctx, room)
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, room *roomdomain.Room) error {
	_, err := r.store.WithTrx(db).Update(ctx, int64(room.ID), map[string]any{
		"number":      room.Number,
		"quota_kwh":   room.QuotaKWh,
		"tariff_rate": room.TariffRate,
		"occupant_id": room.OccupantID,
		"switch1_on":  room.Switch1On,
		"switch2_on":  room.Switch2On,
		"updated_at":  room.UpdatedAt,
	})
	return err
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	affected, err := r.store.WithTrx(db).Delete(ctx, int64(id))
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*roomdomain.Room, error) {
	return r.findOne(ctx, db, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*roomdomain.Room, error) {
	return r.findOne(ctx, db, `SELECT `+roomColumns+` FROM rooms WHERE number = ?`, number)
}

// FindByOccupant uses ux_rooms_occupant; an occupant holds at most one room.
func (r *repo) FindByOccupant(ctx context.Context, db *gorm.DB, occupantID string) (*roomdomain.Room, error) {
	return r.findOne(ctx, db, `SELECT `+roomColumns+` FROM rooms WHERE occupant_id = ?`, occupantID)
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]roomdomain.Room, error) {
	var rooms []roomdomain.Room
	err := db.WithContext(ctx).Raw(
		`SELECT ` + roomColumns + ` FROM rooms ORDER BY number ASC`,
	).Scan(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*roomdomain.Room, error) {
	var room roomdomain.Room
	err := db.WithContext(ctx).Raw(query, args...).Scan(&room).Error
	if err != nil {
		return nil, err
	}
	if room.ID == 0 {
		return nil, nil
	}
	return &room, nil
}
