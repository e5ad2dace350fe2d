package repository

import (
	"context"

	"github.com/smallbiznis/roomwatt/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store for simple tables.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID int64, fields map[string]any) (int64, error)
	Delete(ctx context.Context, resourceID int64) (int64, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
