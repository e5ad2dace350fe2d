// Package domain describes monthly invoice generation.
package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/roomwatt/internal/identity"
	"github.com/smallbiznis/roomwatt/internal/period"
)

type Service interface {
	// GenerateMonthlyInvoices bills every room whose consumption in the period
	// exceeds its quota. Running it again for the same period creates nothing new.
	GenerateMonthlyInvoices(ctx context.Context, actor identity.Actor, p period.Period) (GenerateResult, error)
}

type GenerateRequest struct {
	Period string `json:"period"`
}

// GenerateResult tallies one run. Created, Skipped, AlreadyBilled and Failed
// together account for every room in the directory.
type GenerateResult struct {
	Period        string        `json:"period"`
	Created       int           `json:"created"`
	Skipped       int           `json:"skipped"`
	AlreadyBilled int           `json:"already_billed"`
	Failed        []RoomFailure `json:"failed"`
}

type RoomFailure struct {
	RoomID string `json:"room_id"`
	Error  string `json:"error"`
}

// Outcome of billing one room.
type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeAlreadyBilled Outcome = "already_billed"
	OutcomeFailed        Outcome = "failed"
)

var (
	ErrGenerationInProgress = errors.New("generation_in_progress")
)
