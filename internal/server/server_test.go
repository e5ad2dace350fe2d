package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	billingdomain "github.com/smallbiznis/roomwatt/internal/billing/domain"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/identity"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"github.com/smallbiznis/roomwatt/internal/period"
	"github.com/smallbiznis/roomwatt/internal/ratelimit"
	reportingdomain "github.com/smallbiznis/roomwatt/internal/reporting/domain"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	usagedomain "github.com/smallbiznis/roomwatt/internal/usage/domain"
	"github.com/smallbiznis/roomwatt/internal/usage/liveevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerToken  = "owner-token"
	tenantToken = "tenant-token"
	deviceToken = "device-token"
)

type fakeVerifier struct{}

func (fakeVerifier) Verify(raw string) (identity.Actor, error) {
	switch raw {
	case ownerToken:
		return identity.Actor{ID: "owner-1", Role: identity.RoleOwner}, nil
	case tenantToken:
		return identity.Actor{ID: "tenant-1", Role: identity.RoleTenant}, nil
	case deviceToken:
		return identity.Actor{ID: "meter-1", Role: identity.RoleDevice}, nil
	default:
		return identity.Actor{}, identity.ErrInvalidToken
	}
}

type fakeAuthz struct{}

func (fakeAuthz) Authorize(ctx context.Context, actor identity.Actor, object string, action string) error {
	switch action {
	case authorization.ActionReadingViewAll:
		if actor.Is(identity.RoleOwner) {
			return nil
		}
	case authorization.ActionReadingViewOwn:
		if actor.Is(identity.RoleTenant) {
			return nil
		}
	}
	return authorization.ErrForbidden
}

type fakeRoomService struct {
	rooms     map[snowflake.ID]*roomdomain.Room
	createErr error
	created   []roomdomain.CreateRequest
}

func (f *fakeRoomService) ListAll(ctx context.Context) ([]roomdomain.Room, error) {
	out := make([]roomdomain.Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		out = append(out, *room)
	}
	return out, nil
}

func (f *fakeRoomService) GetByID(ctx context.Context, id snowflake.ID) (*roomdomain.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, roomdomain.ErrNotFound
	}
	return room, nil
}

func (f *fakeRoomService) GetByOccupant(ctx context.Context, occupantID string) (*roomdomain.Room, error) {
	for _, room := range f.rooms {
		if room.OccupantID != nil && *room.OccupantID == occupantID {
			return room, nil
		}
	}
	return nil, roomdomain.ErrNoRoom
}

func (f *fakeRoomService) Create(ctx context.Context, actor identity.Actor, req roomdomain.CreateRequest) (*roomdomain.Response, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &roomdomain.Response{ID: "1", Number: req.Number, QuotaKWh: req.QuotaKWh, TariffRate: req.TariffRate}, nil
}

func (f *fakeRoomService) Update(ctx context.Context, actor identity.Actor, req roomdomain.UpdateRequest) (*roomdomain.Response, error) {
	return &roomdomain.Response{ID: req.ID}, nil
}

func (f *fakeRoomService) Delete(ctx context.Context, actor identity.Actor, id string) error {
	return nil
}

func (f *fakeRoomService) AssignOccupant(ctx context.Context, actor identity.Actor, id string, occupantID string) (*roomdomain.Response, error) {
	return nil, roomdomain.ErrOccupantAssigned
}

func (f *fakeRoomService) SetSwitch(ctx context.Context, actor identity.Actor, id string, switchNo int, on bool) (*roomdomain.Response, error) {
	if switchNo != 1 && switchNo != 2 {
		return nil, roomdomain.ErrInvalidSwitch
	}
	return &roomdomain.Response{ID: id, Switch1On: switchNo == 1 && on, Switch2On: switchNo == 2 && on}, nil
}

func (f *fakeRoomService) Switches(ctx context.Context, actor identity.Actor, id string) (*roomdomain.SwitchState, error) {
	return &roomdomain.SwitchState{RoomID: id, Switch1On: true}, nil
}

func (f *fakeRoomService) Get(ctx context.Context, actor identity.Actor, id string) (*roomdomain.Response, error) {
	return nil, roomdomain.ErrNotFound
}

func (f *fakeRoomService) List(ctx context.Context, actor identity.Actor) ([]roomdomain.Response, error) {
	return []roomdomain.Response{}, nil
}

type fakeUsageService struct {
	recorded []usagedomain.RecordRequest
}

func (f *fakeUsageService) AggregateConsumption(ctx context.Context, roomID snowflake.ID, p period.Period) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeUsageService) Record(ctx context.Context, actor identity.Actor, req usagedomain.RecordRequest) (*usagedomain.Response, error) {
	f.recorded = append(f.recorded, req)
	return &usagedomain.Response{ID: "9", RoomID: req.RoomID, Watts: *req.Watts}, nil
}

func (f *fakeUsageService) Recent(ctx context.Context, roomID snowflake.ID, limit int) ([]usagedomain.Response, error) {
	return nil, nil
}

type fakeInvoiceService struct {
	proof    invoicedomain.SubmitProofRequest
	body     []byte
	proofErr error
}

func (f *fakeInvoiceService) SubmitProof(ctx context.Context, actor identity.Actor, req invoicedomain.SubmitProofRequest) (*invoicedomain.Response, error) {
	if f.proofErr != nil {
		return nil, f.proofErr
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	f.proof = req
	f.body = body
	return &invoicedomain.Response{ID: req.InvoiceID, Status: invoicedomain.InvoiceStatusPending}, nil
}

func (f *fakeInvoiceService) Confirm(ctx context.Context, actor identity.Actor, id string) (*invoicedomain.Response, error) {
	return nil, invoicedomain.ErrInvalidTransition
}

func (f *fakeInvoiceService) Reject(ctx context.Context, actor identity.Actor, id string) (*invoicedomain.Response, error) {
	return &invoicedomain.Response{ID: id, Status: invoicedomain.InvoiceStatusRejected}, nil
}

func (f *fakeInvoiceService) Get(ctx context.Context, actor identity.Actor, id string) (*invoicedomain.Response, error) {
	return nil, invoicedomain.ErrNotFound
}

func (f *fakeInvoiceService) RenderPDF(ctx context.Context, actor identity.Actor, id string) (*invoicedomain.Document, error) {
	return &invoicedomain.Document{
		Filename:    "INV-202405-A101.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4"),
	}, nil
}

type fakeBillingService struct {
	periods []string
	err     error
}

func (f *fakeBillingService) GenerateMonthlyInvoices(ctx context.Context, actor identity.Actor, p period.Period) (billingdomain.GenerateResult, error) {
	f.periods = append(f.periods, p.String())
	if f.err != nil {
		return billingdomain.GenerateResult{}, f.err
	}
	return billingdomain.GenerateResult{Period: p.String(), Created: 2}, nil
}

type fakeReportingService struct {
	readingFilter reportingdomain.ReadingFilter
	month         string
	page          int
}

func (f *fakeReportingService) ReadingHistory(ctx context.Context, actor identity.Actor, filter reportingdomain.ReadingFilter) (*reportingdomain.ReadingHistory, error) {
	f.readingFilter = filter
	return &reportingdomain.ReadingHistory{}, nil
}

func (f *fakeReportingService) TenantReadingHistory(ctx context.Context, actor identity.Actor, month string, page int) (*reportingdomain.TenantReadingHistory, error) {
	f.month = month
	f.page = page
	return &reportingdomain.TenantReadingHistory{}, nil
}

func (f *fakeReportingService) ListInvoices(ctx context.Context, actor identity.Actor, filter reportingdomain.InvoiceFilter) (*reportingdomain.InvoiceList, error) {
	return &reportingdomain.InvoiceList{}, nil
}

func (f *fakeReportingService) TenantInvoices(ctx context.Context, actor identity.Actor, month string, page int) (*reportingdomain.InvoiceList, error) {
	return nil, roomdomain.ErrNoRoom
}

func (f *fakeReportingService) OwnerDashboard(ctx context.Context, actor identity.Actor) (*reportingdomain.OwnerDashboard, error) {
	return nil, authorization.ErrForbidden
}

func (f *fakeReportingService) TenantDashboard(ctx context.Context, actor identity.Actor) (*reportingdomain.TenantDashboard, error) {
	return &reportingdomain.TenantDashboard{}, nil
}

type fakeLimiter struct {
	result *ratelimit.RateLimitResult
	err    error
	rooms  []string
}

func (f *fakeLimiter) Enabled() bool { return true }

func (f *fakeLimiter) AllowRoom(ctx context.Context, roomID string) (*ratelimit.RateLimitResult, error) {
	f.rooms = append(f.rooms, roomID)
	return f.result, f.err
}

type testServer struct {
	*Server
	rooms     *fakeRoomService
	usage     *fakeUsageService
	invoices  *fakeInvoiceService
	billing   *fakeBillingService
	reporting *fakeReportingService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	useJSONFieldNames()

	metering, err := config.NewStaticMeteringConfigHolder(config.DefaultMeteringConfig())
	require.NoError(t, err)

	r := gin.New()
	r.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		rooms:     &fakeRoomService{rooms: map[snowflake.ID]*roomdomain.Room{}},
		usage:     &fakeUsageService{},
		invoices:  &fakeInvoiceService{},
		billing:   &fakeBillingService{},
		reporting: &fakeReportingService{},
	}
	ts.Server = &Server{
		engine:       r,
		cfg:          config.Config{ProofMaxBytes: 5 << 20},
		clock:        clock.NewFakeClock(time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)),
		metering:     metering,
		verifier:     fakeVerifier{},
		authzSvc:     fakeAuthz{},
		roomSvc:      ts.rooms,
		usageSvc:     ts.usage,
		invoiceSvc:   ts.invoices,
		billingSvc:   ts.billing,
		reportingSvc: ts.reporting,
		liveEvents:   liveevents.NewHub(),
	}
	ts.RegisterAPIRoutes()
	return ts
}

func (ts *testServer) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(method, path, token, body string) *httptest.ResponseRecorder {
	return ts.do(method, path, token, strings.NewReader(body), "application/json")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestBearerAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/rooms", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	rec = ts.do(http.MethodGet, "/api/rooms", "forged", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/rooms", ownerToken, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("Bearer "))
}

func TestCreateRoomReportsMissingFieldsByJSONName(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(http.MethodPost, "/api/rooms", ownerToken, `{"quota_kwh":"30"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "number", payload.Errors[0].Field)
	assert.Equal(t, "required", payload.Errors[0].Code)
	assert.Empty(t, ts.rooms.created)
}

func TestCreateRoomDuplicateNumberIsConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.rooms.createErr = roomdomain.ErrDuplicateNumber

	rec := ts.doJSON(http.MethodPost, "/api/rooms", ownerToken, `{"number":"A101","quota_kwh":"30","tariff_rate":"1444.70"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_room_number", decodeError(t, rec).Message)
}

func TestCreateRoomSucceeds(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(http.MethodPost, "/api/rooms", ownerToken, `{"number":"A101","quota_kwh":"30","tariff_rate":1444.70}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ts.rooms.created, 1)
	assert.True(t, ts.rooms.created[0].TariffRate.Equal(decimal.RequireFromString("1444.7")))
}

func TestRoomErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/rooms/42", ownerToken, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.doJSON(http.MethodPut, "/api/rooms/42/occupant", ownerToken, `{"occupant_id":"tenant-1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "occupant_already_assigned", decodeError(t, rec).Message)

	rec = ts.doJSON(http.MethodPut, "/api/rooms/42/switches/x", ownerToken, `{"on":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_switch", decodeError(t, rec).Errors[0].Code)

	rec = ts.doJSON(http.MethodPut, "/api/rooms/42/switches/2", ownerToken, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "on", decodeError(t, rec).Errors[0].Field)

	rec = ts.doJSON(http.MethodPut, "/api/rooms/42/switches/2", ownerToken, `{"on":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"switch2_on":true`)

	rec = ts.do(http.MethodDelete, "/api/rooms/42", ownerToken, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecordReadingRequiresWatts(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(http.MethodPost, "/api/readings", deviceToken, `{"room_id":"42"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "watts", decodeError(t, rec).Errors[0].Field)

	rec = ts.doJSON(http.MethodPost, "/api/readings", deviceToken, `{"room_id":"42","watts":0}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ts.usage.recorded, 1)
	assert.Equal(t, 0.0, *ts.usage.recorded[0].Watts)
}

func TestReadingIngestRateLimitDenies(t *testing.T) {
	ts := newTestServer(t)
	limiter := &fakeLimiter{result: &ratelimit.RateLimitResult{
		Allowed:    false,
		Limit:      10,
		Remaining:  0,
		RetryAfter: 1500 * time.Millisecond,
	}}
	ts.readingLimiter = limiter

	rec := ts.doJSON(http.MethodPost, "/api/readings", deviceToken, `{"room_id":"42","watts":120}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, rateLimitReasonRoomRate, rec.Header().Get("X-Rate-Limited-Reason"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"42"}, limiter.rooms)
	assert.Empty(t, ts.usage.recorded)
}

func TestReadingIngestRateLimitAllowsAndKeepsBody(t *testing.T) {
	ts := newTestServer(t)
	ts.readingLimiter = &fakeLimiter{result: &ratelimit.RateLimitResult{Allowed: true, Limit: 10, Remaining: 9}}

	rec := ts.doJSON(http.MethodPost, "/api/readings", deviceToken, `{"room_id":"42","watts":120}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ts.usage.recorded, 1)
	assert.Equal(t, "42", ts.usage.recorded[0].RoomID)
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestReadingIngestRateLimitUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.readingLimiter = &fakeLimiter{err: errors.New("redis down")}

	rec := ts.doJSON(http.MethodPost, "/api/readings", deviceToken, `{"room_id":"42","watts":120}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListReadingsBindsFilter(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/readings?room_id=42&month=2024-05", ownerToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reportingdomain.ReadingFilter{RoomID: "42", Month: "2024-05", Page: 1}, ts.reporting.readingFilter)

	rec = ts.do(http.MethodGet, "/api/readings?page=abc", ownerToken, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/me/readings?month=2024-04&page=3", tenantToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-04", ts.reporting.month)
	assert.Equal(t, 3, ts.reporting.page)
}

func TestGenerateInvoicesDefaultsToCurrentPeriod(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/invoices/generate", ownerToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2024-05"}, ts.billing.periods)

	rec = ts.doJSON(http.MethodPost, "/api/invoices/generate", ownerToken, `{"period":"2024-04"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2024-05", "2024-04"}, ts.billing.periods)
	assert.Contains(t, rec.Body.String(), `"created":2`)
}

func TestGenerateInvoicesErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(http.MethodPost, "/api/invoices/generate", ownerToken, `{"period":"2024-13"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_period", decodeError(t, rec).Errors[0].Code)
	assert.Empty(t, ts.billing.periods)

	ts.billing.err = billingdomain.ErrGenerationInProgress
	rec = ts.doJSON(http.MethodPost, "/api/invoices/generate", ownerToken, `{"period":"2024-04"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	ts.billing.err = authorization.ErrForbidden
	rec = ts.doJSON(http.MethodPost, "/api/invoices/generate", tenantToken, `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func multipartProof(t *testing.T, field string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "receipt.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestSubmitProofSniffsContentType(t *testing.T) {
	ts := newTestServer(t)
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x01}, 2048)...)

	body, contentType := multipartProof(t, proofFormField, png)
	rec := ts.do(http.MethodPost, "/api/invoices/77/proof", tenantToken, body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "77", ts.invoices.proof.InvoiceID)
	assert.Equal(t, "receipt.png", ts.invoices.proof.Filename)
	assert.Equal(t, "image/png", ts.invoices.proof.ContentType)
	assert.Equal(t, int64(len(png)), ts.invoices.proof.Size)
	assert.Equal(t, png, ts.invoices.body)
}

func TestSubmitProofErrors(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartProof(t, "file", []byte("hello"))
	rec := ts.do(http.MethodPost, "/api/invoices/77/proof", tenantToken, body, contentType)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, proofFormField, decodeError(t, rec).Errors[0].Field)

	ts.invoices.proofErr = invoicedomain.ErrProofTooLarge
	body, contentType = multipartProof(t, proofFormField, []byte("hello"))
	rec = ts.do(http.MethodPost, "/api/invoices/77/proof", tenantToken, body, contentType)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	ts.invoices.proofErr = invoicedomain.ErrInvalidContentType
	body, contentType = multipartProof(t, proofFormField, []byte("hello"))
	rec = ts.do(http.MethodPost, "/api/invoices/77/proof", tenantToken, body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoiceLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/invoices/77/confirm", ownerToken, nil, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decodeError(t, rec).Message)

	rec = ts.do(http.MethodPost, "/api/invoices/77/reject", ownerToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"REJECTED"`)

	rec = ts.do(http.MethodGet, "/api/invoices/77", ownerToken, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/invoices/77/pdf", ownerToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="INV-202405-A101.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
}

func TestDashboardsAndTenantInvoices(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/dashboard", tenantToken, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/api/me/dashboard", tenantToken, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/me/invoices", tenantToken, nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_room_assigned", decodeError(t, rec).Message)
}

func TestStreamRoomReadingsForbidsOtherTenants(t *testing.T) {
	ts := newTestServer(t)
	occupant := "tenant-1"
	ts.rooms.rooms[snowflake.ID(42)] = &roomdomain.Room{ID: 42, Number: "A101", OccupantID: &occupant}
	ts.rooms.rooms[snowflake.ID(43)] = &roomdomain.Room{ID: 43, Number: "A102"}

	rec := ts.do(http.MethodGet, "/api/rooms/43/readings/live", tenantToken, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/api/rooms/44/readings/live", ownerToken, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/rooms/abc/readings/live", ownerToken, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/rooms/42/readings/live", deviceToken, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStreamRoomReadingsSendsBacklog(t *testing.T) {
	ts := newTestServer(t)
	ts.rooms.rooms[snowflake.ID(42)] = &roomdomain.Room{ID: 42, Number: "A101"}
	ts.liveEvents.Publish("42", liveevents.LiveEvent{
		ReadingID:  "900",
		Watts:      3600,
		KWh:        "0.005",
		RecordedAt: "2024-05-20T08:00:00Z",
		Source:     liveevents.SourceDevice,
	})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/42/readings/live", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	rec := httptest.NewRecorder()

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	ts.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "retry: 2000\n\n"))
	assert.Contains(t, body, "event: reading\n")
	assert.Contains(t, body, `"reading_id":"900"`)
	assert.Contains(t, body, `"room_id":"42"`)
}

func TestClassifyErrorForLog(t *testing.T) {
	errType, code := classifyErrorForLog(roomdomain.ErrInvalidQuota)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "invalid_quota", code)

	errType, code = classifyErrorForLog(billingdomain.ErrGenerationInProgress)
	assert.Equal(t, "conflict", errType)
	assert.Equal(t, "generation_in_progress", code)

	errType, _ = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "internal_error", errType)
}
