package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reading *Reading) error
	// SumWatts adds up every reading of the room recorded in [start, end).
	SumWatts(ctx context.Context, db *gorm.DB, roomID snowflake.ID, start, end time.Time) (WattsSum, error)
	Recent(ctx context.Context, db *gorm.DB, roomID snowflake.ID, limit int) ([]Reading, error)
}

type WattsSum struct {
	Watts float64
	Count int64
}
