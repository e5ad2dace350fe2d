package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/identity"
)

type Service interface {
	SubmitProof(ctx context.Context, actor identity.Actor, req SubmitProofRequest) (*Response, error)
	Confirm(ctx context.Context, actor identity.Actor, id string) (*Response, error)
	Reject(ctx context.Context, actor identity.Actor, id string) (*Response, error)
	Get(ctx context.Context, actor identity.Actor, id string) (*Response, error)
	RenderPDF(ctx context.Context, actor identity.Actor, id string) (*Document, error)
}

type SubmitProofRequest struct {
	InvoiceID   string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Response struct {
	ID           string          `json:"id"`
	Number       string          `json:"number"`
	RoomID       string          `json:"room_id"`
	Period       string          `json:"period"`
	TotalKWh     decimal.Decimal `json:"total_kwh"`
	OverageKWh   decimal.Decimal `json:"overage_kwh"`
	AmountDue    decimal.Decimal `json:"amount_due"`
	Status       InvoiceStatus   `json:"status"`
	ProofURL     *string         `json:"proof_url,omitempty"`
	LastUploadAt *time.Time      `json:"last_upload_at,omitempty"`
	ReviewedAt   *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrInvalidProof       = errors.New("invalid_proof")
	ErrInvalidContentType = errors.New("invalid_proof_content_type")
	ErrProofTooLarge      = errors.New("proof_too_large")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}

func ToResponse(inv *Invoice) *Response {
	return &Response{
		ID:           inv.ID.String(),
		Number:       inv.Number,
		RoomID:       inv.RoomID.String(),
		Period:       inv.Period,
		TotalKWh:     inv.TotalKWh,
		OverageKWh:   inv.OverageKWh,
		AmountDue:    inv.AmountDue,
		Status:       inv.Status,
		ProofURL:     inv.ProofURL,
		LastUploadAt: inv.LastUploadAt,
		ReviewedAt:   inv.ReviewedAt,
		CreatedAt:    inv.CreatedAt,
	}
}
