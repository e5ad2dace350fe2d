// Package domain contains persistence models for room invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents payment states of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending  InvoiceStatus = "PENDING"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
	InvoiceStatusRejected InvoiceStatus = "REJECTED"
)

// Invoice bills a room's consumption above its quota for one calendar month.
// There is at most one invoice per (room, period).
type Invoice struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	Number       string            `gorm:"type:text;not null"`
	RoomID       snowflake.ID      `gorm:"not null;uniqueIndex:ux_invoices_room_period,priority:1"`
	Period       string            `gorm:"type:varchar(7);not null;index;uniqueIndex:ux_invoices_room_period,priority:2"`
	TotalKWh     decimal.Decimal   `gorm:"column:total_kwh;type:numeric(18,3);not null"`
	OverageKWh   decimal.Decimal   `gorm:"column:overage_kwh;type:numeric(18,3);not null"`
	AmountDue    decimal.Decimal   `gorm:"column:amount_due;type:numeric(18,2);not null"`
	Status       InvoiceStatus     `gorm:"type:varchar(16);not null;default:'PENDING'"`
	ProofKey     *string           `gorm:"type:text"`
	ProofURL     *string           `gorm:"column:proof_url;type:text"`
	LastUploadAt *time.Time        `gorm:""`
	ReviewedAt   *time.Time        `gorm:""`
	Snapshot     datatypes.JSONMap `gorm:""`
	CreatedAt    time.Time         `gorm:"not null"`
	UpdatedAt    time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// CanSubmitProof reports whether a tenant may upload payment proof.
func (s InvoiceStatus) CanSubmitProof() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusRejected
}

// CanReview reports whether the owner may confirm or reject the invoice.
func (s InvoiceStatus) CanReview() bool {
	return s == InvoiceStatusPending
}
