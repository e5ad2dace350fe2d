package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, room *Room) error
	Update(ctx context.Context, db *gorm.DB, room *Room) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Room, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Room, error)
	FindByOccupant(ctx context.Context, db *gorm.DB, occupantID string) (*Room, error)
	List(ctx context.Context, db *gorm.DB) ([]Room, error)
}
