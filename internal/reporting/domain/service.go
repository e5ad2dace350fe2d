package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/roomwatt/internal/identity"
)

// Service serves read-only projections over readings and invoices.
type Service interface {
	ReadingHistory(ctx context.Context, actor identity.Actor, filter ReadingFilter) (*ReadingHistory, error)
	TenantReadingHistory(ctx context.Context, actor identity.Actor, month string, page int) (*TenantReadingHistory, error)
	ListInvoices(ctx context.Context, actor identity.Actor, filter InvoiceFilter) (*InvoiceList, error)
	TenantInvoices(ctx context.Context, actor identity.Actor, month string, page int) (*InvoiceList, error)
	OwnerDashboard(ctx context.Context, actor identity.Actor) (*OwnerDashboard, error)
	TenantDashboard(ctx context.Context, actor identity.Actor) (*TenantDashboard, error)
}

const RecentReadingsLimit = 7

var ErrInvalidRoom = errors.New("invalid_room")
