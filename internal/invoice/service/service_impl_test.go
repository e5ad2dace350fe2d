package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/identity"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"github.com/smallbiznis/roomwatt/internal/invoice/repository"
	"github.com/smallbiznis/roomwatt/internal/proof"
	"github.com/smallbiznis/roomwatt/internal/providers/pdf"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	roomrepository "github.com/smallbiznis/roomwatt/internal/room/repository"
	roomservice "github.com/smallbiznis/roomwatt/internal/room/service"
	"github.com/smallbiznis/roomwatt/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	owner       = identity.Actor{ID: "owner-1", Role: identity.RoleOwner}
	tenant      = identity.Actor{ID: "tenant-1", Role: identity.RoleTenant}
	otherTenant = identity.Actor{ID: "tenant-2", Role: identity.RoleTenant}
)

type fixture struct {
	svc      invoicedomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	room     roomdomain.Room
	storeDir string
	clock    *clock.FakeClock
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testkit.OpenDB(t)
	node := testkit.IDNode(t)
	authz := testkit.Authorizer(t, db)
	clk := clock.NewFakeClock(time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC))

	room := testkit.SeedRoom(t, db, node, "A101", "30", "1444.70", tenant.ID)
	testkit.SeedRoom(t, db, node, "A102", "30", "1444.70", otherTenant.ID)

	rooms := roomservice.New(roomservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Authz: authz,
		Repo:  roomrepository.Provide(db),
	})

	dir := t.TempDir()
	store, err := proof.NewLocalStore(dir, "/files", zap.NewNop())
	require.NoError(t, err)

	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clk,
		Config: config.Config{ProofMaxBytes: 1024},
		Authz:  authz,
		Rooms:  rooms,
		Repo:   repository.Provide(),
		Proofs: store,
		PDF:    pdf.New("roomwatt"),
	})
	return fixture{svc: svc, db: db, node: node, room: room, storeDir: dir, clock: clk}
}

func (f fixture) seedInvoice(t *testing.T, status invoicedomain.InvoiceStatus) invoicedomain.Invoice {
	t.Helper()
	now := time.Date(2024, 6, 1, 0, 5, 0, 0, time.UTC)
	inv := invoicedomain.Invoice{
		ID:         f.node.Generate(),
		Number:     "INV-202405-A101",
		RoomID:     f.room.ID,
		Period:     "2024-05",
		TotalKWh:   decimal.RequireFromString("42.5"),
		OverageKWh: decimal.RequireFromString("12.5"),
		AmountDue:  decimal.RequireFromString("18058.75"),
		Status:     status,
		Snapshot: datatypes.JSONMap{
			"room_number": "A101",
			"quota_kwh":   "30",
			"tariff_rate": "1444.7",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(&inv).Error)
	return inv
}

func proofRequest(id string, body string) invoicedomain.SubmitProofRequest {
	return invoicedomain.SubmitProofRequest{
		InvoiceID:   id,
		Filename:    "transfer.png",
		ContentType: "image/png",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func countProofFiles(t *testing.T, dir string) int {
	t.Helper()
	count := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

func TestSubmitProofKeepsPendingAndReplacesFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.seedInvoice(t, invoicedomain.InvoiceStatusPending)

	first, err := f.svc.SubmitProof(ctx, tenant, proofRequest(inv.ID.String(), "first"))
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, first.Status)
	require.NotNil(t, first.ProofURL)
	assert.True(t, strings.HasPrefix(*first.ProofURL, "/files/proofs/"+inv.ID.String()+"/"))
	assert.Equal(t, 1, countProofFiles(t, f.storeDir))

	f.clock.Advance(time.Minute)
	second, err := f.svc.SubmitProof(ctx, tenant, proofRequest(inv.ID.String(), "second"))
	require.NoError(t, err)
	assert.NotEqual(t, *first.ProofURL, *second.ProofURL)
	assert.Equal(t, 1, countProofFiles(t, f.storeDir), "superseded proof should be deleted")

	stored, err := f.svc.Get(ctx, owner, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, *second.ProofURL, *stored.ProofURL)
	require.NotNil(t, stored.LastUploadAt)
	assert.True(t, stored.LastUploadAt.Equal(f.clock.Now()))
}

func TestRejectedInvoiceReturnsToPendingOnResubmission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.seedInvoice(t, invoicedomain.InvoiceStatusPending)

	_, err := f.svc.SubmitProof(ctx, tenant, proofRequest(inv.ID.String(), "blurry"))
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, owner, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusRejected, rejected.Status)
	require.NotNil(t, rejected.ReviewedAt)

	resubmitted, err := f.svc.SubmitProof(ctx, tenant, proofRequest(inv.ID.String(), "sharp"))
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, resubmitted.Status)

	paid, err := f.svc.Confirm(ctx, owner, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, paid.Status)
}

func TestPaidInvoiceIsTerminal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.seedInvoice(t, invoicedomain.InvoiceStatusPaid)

	_, err := f.svc.SubmitProof(ctx, tenant, proofRequest(inv.ID.String(), "late"))
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidTransition)
	assert.Equal(t, 0, countProofFiles(t, f.storeDir))

	_, err = f.svc.Confirm(ctx, owner, inv.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidTransition)

	_, err = f.svc.Reject(ctx, owner, inv.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidTransition)
}

func TestRejectedInvoiceCannotBeReviewedAgain(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.seedInvoice(t, invoicedomain.InvoiceStatusRejected)

	_, err := f.svc.Confirm(ctx, owner, inv.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidTransition)

	var stored invoicedomain.Invoice
	require.NoError(t, f.db.First(&stored, inv.ID).Error)
	assert.Equal(t, invoicedomain.InvoiceStatusRejected, stored.Status)
	assert.Nil(t, stored.ReviewedAt)
}

func TestReviewUnknownInvoice(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Confirm(context.Background(), owner, f.node.Generate().String())
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	_, err = f.svc.Reject(context.Background(), owner, "not-an-id")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidID)
}

func TestSubmitProofOwnershipAndRoles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.seedInvoice(t, invoicedomain.InvoiceStatusPending)

	_, err := f.svc.SubmitProof(ctx, otherTenant, proofRequest(inv.ID.String(), "x"))
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	homeless := identity.Actor{ID: "tenant-9", Role: identity.RoleTenant}
	_, err = f.svc.SubmitProof(ctx, homeless, proofRequest(inv.ID.String(), "x"))
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	_, err = f.svc.SubmitProof(ctx, owner, proofRequest(inv.ID.String(), "x"))
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = f.svc.Confirm(ctx, tenant, inv.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestSubmitProofValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.seedInvoice(t, invoicedomain.InvoiceStatusPending)

	req := proofRequest(inv.ID.String(), "x")
	req.ContentType = "text/html"
	_, err := f.svc.SubmitProof(ctx, tenant, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidContentType)

	big := proofRequest(inv.ID.String(), strings.Repeat("a", 2048))
	_, err = f.svc.SubmitProof(ctx, tenant, big)
	assert.ErrorIs(t, err, invoicedomain.ErrProofTooLarge)

	empty := proofRequest(inv.ID.String(), "")
	_, err = f.svc.SubmitProof(ctx, tenant, empty)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidProof)

	assert.Equal(t, 0, countProofFiles(t, f.storeDir))
}

func TestGetVisibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.seedInvoice(t, invoicedomain.InvoiceStatusPending)

	got, err := f.svc.Get(ctx, tenant, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "INV-202405-A101", got.Number)
	assert.True(t, got.AmountDue.Equal(decimal.RequireFromString("18058.75")))

	_, err = f.svc.Get(ctx, otherTenant, inv.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	device := identity.Actor{ID: "meter", Role: identity.RoleDevice}
	_, err = f.svc.Get(ctx, device, inv.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestRenderPDF(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.seedInvoice(t, invoicedomain.InvoiceStatusPending)

	doc, err := f.svc.RenderPDF(ctx, tenant, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "INV-202405-A101.pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF")))

	_, err = f.svc.Confirm(ctx, owner, inv.ID.String())
	require.NoError(t, err)

	receipt, err := f.svc.RenderPDF(ctx, owner, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "INV-202405-A101-receipt.pdf", receipt.Filename)
}
