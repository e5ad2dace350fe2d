package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/identity"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/roomwatt/internal/observability/metrics"
	"github.com/smallbiznis/roomwatt/internal/proof"
	"github.com/smallbiznis/roomwatt/internal/providers/pdf"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Config  config.Config
	Authz   authorization.Service
	Rooms   roomdomain.Directory
	Repo    invoicedomain.Repository
	Proofs  proof.Store
	PDF     pdf.Provider
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	authz         authorization.Service
	rooms         roomdomain.Directory
	repo          invoicedomain.Repository
	proofs        proof.Store
	pdf           pdf.Provider
	metrics       *obsmetrics.Metrics
	proofMaxBytes int64
}

func New(p Params) invoicedomain.Service {
	maxBytes := p.Config.ProofMaxBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("invoice.service"),
		clock:         p.Clock,
		authz:         p.Authz,
		rooms:         p.Rooms,
		repo:          p.Repo,
		proofs:        p.Proofs,
		pdf:           p.PDF,
		metrics:       p.Metrics,
		proofMaxBytes: maxBytes,
	}
}

// SubmitProof attaches a payment proof to one of the tenant's own invoices.
// A PENDING invoice gets its proof replaced; a REJECTED one goes back to PENDING.
func (s *Service) SubmitProof(ctx context.Context, actor identity.Actor, req invoicedomain.SubmitProofRequest) (*invoicedomain.Response, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceSubmitProof); err != nil {
		return nil, err
	}

	invoice, err := s.loadForTenant(ctx, actor, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.CanSubmitProof() {
		return nil, invoicedomain.ErrInvalidTransition
	}

	if req.Body == nil || req.Size <= 0 {
		return nil, invoicedomain.ErrInvalidProof
	}
	if req.Size > s.proofMaxBytes {
		return nil, invoicedomain.ErrProofTooLarge
	}
	if !proof.AllowedContentType(req.ContentType) {
		return nil, invoicedomain.ErrInvalidContentType
	}

	key, err := proof.NewKey(invoice.ID.String(), req.Filename, req.ContentType)
	if err != nil {
		return nil, invoicedomain.ErrInvalidProof
	}
	artifact, err := s.proofs.Put(ctx, proof.PutRequest{
		Key:         key,
		ContentType: req.ContentType,
		Size:        req.Size,
		Body:        req.Body,
	})
	if err != nil {
		if errors.Is(err, proof.ErrEmptyBody) {
			return nil, invoicedomain.ErrInvalidProof
		}
		return nil, fmt.Errorf("store proof: %w", err)
	}

	now := s.clock.Now().UTC()
	affected, err := s.repo.AttachProof(ctx, s.db, invoice.ID, invoicedomain.ProofUpdate{
		Key:        artifact.Key,
		URL:        artifact.URL,
		UploadedAt: now,
	})
	if err == nil && affected == 0 {
		// reviewed by the owner between our read and the update
		err = invoicedomain.ErrInvalidTransition
	}
	if err != nil {
		s.discardProof(ctx, artifact.Key, "proof update failed")
		return nil, err
	}

	if invoice.ProofKey != nil && *invoice.ProofKey != "" && *invoice.ProofKey != artifact.Key {
		s.discardProof(ctx, *invoice.ProofKey, "superseded proof")
	}

	s.recordTransition(ctx, invoice.Status, invoicedomain.InvoiceStatusPending)
	s.log.Info("invoice proof submitted",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("from", string(invoice.Status)),
		zap.String("actor_id", actor.ID),
	)

	invoice.Status = invoicedomain.InvoiceStatusPending
	invoice.ProofKey = &artifact.Key
	invoice.ProofURL = &artifact.URL
	invoice.LastUploadAt = &now
	invoice.UpdatedAt = now
	return invoicedomain.ToResponse(invoice), nil
}

func (s *Service) Confirm(ctx context.Context, actor identity.Actor, id string) (*invoicedomain.Response, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceConfirm); err != nil {
		return nil, err
	}
	return s.review(ctx, actor, id, invoicedomain.InvoiceStatusPaid)
}

func (s *Service) Reject(ctx context.Context, actor identity.Actor, id string) (*invoicedomain.Response, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceReject); err != nil {
		return nil, err
	}
	return s.review(ctx, actor, id, invoicedomain.InvoiceStatusRejected)
}

func (s *Service) review(ctx context.Context, actor identity.Actor, id string, to invoicedomain.InvoiceStatus) (*invoicedomain.Response, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, invoicedomain.ErrNotFound
	}
	if !current.Status.CanReview() {
		return nil, invoicedomain.ErrInvalidTransition
	}

	// a concurrent review can still win between the read and the update
	now := s.clock.Now().UTC()
	affected, err := s.repo.Review(ctx, s.db, invoiceID, to, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, invoicedomain.ErrInvalidTransition
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}

	s.recordTransition(ctx, invoicedomain.InvoiceStatusPending, to)
	s.log.Info("invoice reviewed",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("status", string(to)),
		zap.String("actor_id", actor.ID),
	)
	return invoicedomain.ToResponse(invoice), nil
}

func (s *Service) Get(ctx context.Context, actor identity.Actor, id string) (*invoicedomain.Response, error) {
	invoice, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return invoicedomain.ToResponse(invoice), nil
}

func (s *Service) loadVisible(ctx context.Context, actor identity.Actor, id string) (*invoicedomain.Invoice, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceViewAll); err == nil {
		return s.load(ctx, id)
	} else if !errors.Is(err, authorization.ErrForbidden) {
		return nil, err
	}

	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceViewOwn); err != nil {
		return nil, err
	}
	return s.loadForTenant(ctx, actor, id)
}

func (s *Service) load(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

// loadForTenant hides invoices of other rooms behind ErrNotFound.
func (s *Service) loadForTenant(ctx context.Context, actor identity.Actor, id string) (*invoicedomain.Invoice, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	room, err := s.rooms.GetByOccupant(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, roomdomain.ErrNoRoom) {
			return nil, invoicedomain.ErrNotFound
		}
		return nil, err
	}
	if invoice.RoomID != room.ID {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) discardProof(ctx context.Context, key, reason string) {
	if err := s.proofs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("proof cleanup failed",
			zap.String("key", key),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func (s *Service) recordTransition(ctx context.Context, from, to invoicedomain.InvoiceStatus) {
	s.metrics.RecordInvoiceTransition(ctx, strings.ToLower(string(from)), strings.ToLower(string(to)))
}

func parseID(value string) (snowflake.ID, error) {
	id, err := invoicedomain.ParseID(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invoicedomain.ErrInvalidID
	}
	return id, nil
}
