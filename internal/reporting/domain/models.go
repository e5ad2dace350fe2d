package domain

import (
	"time"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"github.com/smallbiznis/roomwatt/pkg/db/pagination"
)

// ReadingFilter narrows the owner reading report. Date wins over Month when
// both are set.
type ReadingFilter struct {
	RoomID string `form:"room_id"`
	Date   string `form:"date"`
	Month  string `form:"month"`
	Page   int    `form:"page,default=1"`
}

type InvoiceFilter struct {
	RoomID string `form:"room_id"`
	Month  string `form:"month"`
	Page   int    `form:"page,default=1"`
}

type ReadingRow struct {
	ID           string          `json:"id"`
	RoomID       string          `json:"room_id"`
	RoomNumber   string          `json:"room_number"`
	Watts        float64         `json:"watts"`
	KWh          decimal.Decimal `json:"kwh"`
	OverQuotaKWh decimal.Decimal `json:"over_quota_kwh"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// RoomSummary totals one room over the whole filtered set, not just a page.
type RoomSummary struct {
	RoomID       string          `json:"room_id"`
	RoomNumber   string          `json:"room_number"`
	TotalKWh     decimal.Decimal `json:"total_kwh"`
	OverQuotaKWh decimal.Decimal `json:"over_quota_kwh"`
	Readings     int64           `json:"readings"`
}

type ReadingHistory struct {
	Rows    []ReadingRow        `json:"rows"`
	Summary []RoomSummary       `json:"summary"`
	Page    pagination.PageInfo `json:"page"`
}

type TenantReadingHistory struct {
	RoomID     string              `json:"room_id"`
	RoomNumber string              `json:"room_number"`
	QuotaKWh   decimal.Decimal     `json:"quota_kwh"`
	TotalKWh   decimal.Decimal     `json:"total_kwh"`
	Rows       []ReadingRow        `json:"rows"`
	Page       pagination.PageInfo `json:"page"`
}

type InvoiceRow struct {
	invoicedomain.Response
	RoomNumber string `json:"room_number"`
}

type InvoiceList struct {
	Rows []InvoiceRow        `json:"rows"`
	Page pagination.PageInfo `json:"page"`
}

type RoomOverview struct {
	ID            string                  `json:"id"`
	Number        string                  `json:"number"`
	QuotaKWh      decimal.Decimal         `json:"quota_kwh"`
	TariffRate    decimal.Decimal         `json:"tariff_rate"`
	OccupantID    *string                 `json:"occupant_id,omitempty"`
	Switch1On     bool                    `json:"switch1_on"`
	Switch2On     bool                    `json:"switch2_on"`
	LatestInvoice *invoicedomain.Response `json:"latest_invoice,omitempty"`
}

type OwnerDashboard struct {
	Rooms []RoomOverview `json:"rooms"`
}

type TenantDashboard struct {
	Room           RoomOverview `json:"room"`
	RecentReadings []ReadingRow `json:"recent_readings"`
}
