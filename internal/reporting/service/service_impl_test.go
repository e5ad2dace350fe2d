package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/identity"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"github.com/smallbiznis/roomwatt/internal/period"
	reportingdomain "github.com/smallbiznis/roomwatt/internal/reporting/domain"
	"github.com/smallbiznis/roomwatt/internal/reporting/repository"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	roomrepository "github.com/smallbiznis/roomwatt/internal/room/repository"
	roomservice "github.com/smallbiznis/roomwatt/internal/room/service"
	"github.com/smallbiznis/roomwatt/internal/testkit"
	"github.com/smallbiznis/roomwatt/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	owner  = identity.Actor{ID: "owner-1", Role: identity.RoleOwner}
	tenant = identity.Actor{ID: "tenant-1", Role: identity.RoleTenant}
	may10  = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc  reportingdomain.Service
	db   *gorm.DB
	node *snowflake.Node
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testkit.OpenDB(t)
	node := testkit.IDNode(t)
	authz := testkit.Authorizer(t, db)
	holder, err := config.NewStaticMeteringConfigHolder(config.DefaultMeteringConfig())
	require.NoError(t, err)

	rooms := roomservice.New(roomservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(may10),
		Authz: authz,
		Repo:  roomrepository.Provide(db),
	})
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Authz:    authz,
		Rooms:    rooms,
		Repo:     repository.Provide(),
		Metering: holder,
	})
	return fixture{svc: svc, db: db, node: node}
}

func (f fixture) seedInvoice(t *testing.T, roomID snowflake.ID, p string, amount string) invoicedomain.Invoice {
	t.Helper()
	inv := invoicedomain.Invoice{
		ID:         f.node.Generate(),
		Number:     "INV-" + p + "-" + roomID.String(),
		RoomID:     roomID,
		Period:     p,
		TotalKWh:   decimal.NewFromInt(40),
		OverageKWh: decimal.NewFromInt(10),
		AmountDue:  decimal.RequireFromString(amount),
		Status:     invoicedomain.InvoiceStatusPending,
		CreatedAt:  may10,
		UpdatedAt:  may10,
	}
	require.NoError(t, f.db.Create(&inv).Error)
	return inv
}

func watts(n int, w float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = w
	}
	return out
}

func TestReadingHistoryPagination(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	room := testkit.SeedRoom(t, f.db, f.node, "A1", "0", "1000", "")
	testkit.SeedReadings(t, f.db, f.node, room.ID, may10, time.Minute, watts(37, 720)...)

	sizes := []int{15, 15, 7}
	for i, want := range sizes {
		got, err := f.svc.ReadingHistory(ctx, owner, reportingdomain.ReadingFilter{Page: i + 1})
		require.NoError(t, err)
		assert.Len(t, got.Rows, want, "page %d", i+1)
		assert.Equal(t, 3, got.Page.TotalPages)
		assert.Equal(t, int64(37), got.Page.TotalItems)
	}

	past, err := f.svc.ReadingHistory(ctx, owner, reportingdomain.ReadingFilter{Page: 4})
	require.NoError(t, err)
	assert.Empty(t, past.Rows)
	assert.NotNil(t, past.Rows)
	assert.Equal(t, 3, past.Page.TotalPages)
	require.Len(t, past.Summary, 1)
	assert.Equal(t, int64(37), past.Summary[0].Readings)
}

func TestHugePageNumberIsPastTheEnd(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	room := testkit.SeedRoom(t, f.db, f.node, "A1", "0", "1000", "")
	testkit.SeedReadings(t, f.db, f.node, room.ID, may10, time.Minute, watts(37, 720)...)
	f.seedInvoice(t, room.ID, "2024-05", "30")

	huge := math.MaxInt64/pagination.DefaultPageSize + 2

	readings, err := f.svc.ReadingHistory(ctx, owner, reportingdomain.ReadingFilter{Page: huge})
	require.NoError(t, err)
	assert.Empty(t, readings.Rows)
	assert.Equal(t, 3, readings.Page.TotalPages)
	require.Len(t, readings.Summary, 1)
	assert.Equal(t, int64(37), readings.Summary[0].Readings)

	invoices, err := f.svc.ListInvoices(ctx, owner, reportingdomain.InvoiceFilter{Page: huge})
	require.NoError(t, err)
	assert.Empty(t, invoices.Rows)
	assert.Equal(t, 1, invoices.Page.TotalPages)
}

func TestReadingHistoryNewestFirst(t *testing.T) {
	f := setup(t)
	room := testkit.SeedRoom(t, f.db, f.node, "A1", "0", "1000", "")
	testkit.SeedReadings(t, f.db, f.node, room.ID, may10, time.Minute, 100, 200, 300)

	got, err := f.svc.ReadingHistory(context.Background(), owner, reportingdomain.ReadingFilter{Page: 1})
	require.NoError(t, err)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, float64(300), got.Rows[0].Watts)
	assert.Equal(t, float64(100), got.Rows[2].Watts)
	assert.Equal(t, "A1", got.Rows[0].RoomNumber)
}

func TestReadingHistoryDateWinsOverMonth(t *testing.T) {
	f := setup(t)
	room := testkit.SeedRoom(t, f.db, f.node, "A1", "0", "1000", "")
	testkit.SeedReadings(t, f.db, f.node, room.ID, may10, time.Hour, 100, 100, 100)
	testkit.SeedReadings(t, f.db, f.node, room.ID, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), time.Hour, 100, 100)

	got, err := f.svc.ReadingHistory(context.Background(), owner, reportingdomain.ReadingFilter{
		Date:  "2024-05-10",
		Month: "2024-06",
		Page:  1,
	})
	require.NoError(t, err)
	assert.Len(t, got.Rows, 3)
	for _, row := range got.Rows {
		assert.Equal(t, 10, row.RecordedAt.Day())
	}

	byMonth, err := f.svc.ReadingHistory(context.Background(), owner, reportingdomain.ReadingFilter{Month: "2024-06", Page: 1})
	require.NoError(t, err)
	assert.Len(t, byMonth.Rows, 2)
}

func TestReadingHistorySummaryCoversWholeFilteredSet(t *testing.T) {
	f := setup(t)
	a := testkit.SeedRoom(t, f.db, f.node, "A1", "0.001", "1000", "")
	b := testkit.SeedRoom(t, f.db, f.node, "B1", "0", "1000", "")
	// 3600 W for 5 s is 0.005 kWh; 720 W is 0.001 kWh.
	testkit.SeedReadings(t, f.db, f.node, a.ID, may10, time.Minute, watts(20, 3600)...)
	testkit.SeedReadings(t, f.db, f.node, b.ID, may10, time.Minute, watts(5, 720)...)

	got, err := f.svc.ReadingHistory(context.Background(), owner, reportingdomain.ReadingFilter{Page: 1})
	require.NoError(t, err)
	assert.Len(t, got.Rows, 15)
	require.Len(t, got.Summary, 2)

	sa, sb := got.Summary[0], got.Summary[1]
	assert.Equal(t, "A1", sa.RoomNumber)
	assert.Equal(t, int64(20), sa.Readings)
	assert.True(t, sa.TotalKWh.Equal(decimal.RequireFromString("0.1")), sa.TotalKWh.String())
	assert.True(t, sa.OverQuotaKWh.Equal(decimal.RequireFromString("0.08")), sa.OverQuotaKWh.String())

	assert.Equal(t, "B1", sb.RoomNumber)
	assert.Equal(t, int64(5), sb.Readings)
	assert.True(t, sb.TotalKWh.Equal(decimal.RequireFromString("0.005")), sb.TotalKWh.String())
	assert.True(t, sb.OverQuotaKWh.Equal(decimal.RequireFromString("0.005")), sb.OverQuotaKWh.String())

	filtered, err := f.svc.ReadingHistory(context.Background(), owner, reportingdomain.ReadingFilter{RoomID: b.ID.String(), Page: 1})
	require.NoError(t, err)
	assert.Len(t, filtered.Rows, 5)
	require.Len(t, filtered.Summary, 1)
	assert.Equal(t, b.ID.String(), filtered.Summary[0].RoomID)
}

func TestReadingHistoryKeepsReadingsOfDeletedRooms(t *testing.T) {
	f := setup(t)
	room := testkit.SeedRoom(t, f.db, f.node, "Z9", "0", "1000", "")
	testkit.SeedReadings(t, f.db, f.node, room.ID, may10, time.Minute, 720)
	require.NoError(t, f.db.Delete(&roomdomain.Room{}, room.ID).Error)

	got, err := f.svc.ReadingHistory(context.Background(), owner, reportingdomain.ReadingFilter{Page: 1})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "", got.Rows[0].RoomNumber)
	assert.False(t, got.Rows[0].KWh.IsZero())
	assert.True(t, got.Rows[0].OverQuotaKWh.Equal(got.Rows[0].KWh), "over=%s kwh=%s", got.Rows[0].OverQuotaKWh, got.Rows[0].KWh)
	require.Len(t, got.Summary, 1)
	assert.True(t, got.Summary[0].OverQuotaKWh.Equal(got.Rows[0].KWh))
}

func TestReadingHistoryValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.ReadingHistory(ctx, owner, reportingdomain.ReadingFilter{Page: 0})
	assert.ErrorIs(t, err, pagination.ErrInvalidPage)

	_, err = f.svc.ReadingHistory(ctx, owner, reportingdomain.ReadingFilter{Month: "2024-13", Page: 1})
	assert.ErrorIs(t, err, period.ErrInvalidPeriod)

	_, err = f.svc.ReadingHistory(ctx, owner, reportingdomain.ReadingFilter{Date: "10-05-2024", Page: 1})
	assert.ErrorIs(t, err, period.ErrInvalidDate)

	_, err = f.svc.ReadingHistory(ctx, owner, reportingdomain.ReadingFilter{RoomID: "room-a", Page: 1})
	assert.ErrorIs(t, err, reportingdomain.ErrInvalidRoom)

	_, err = f.svc.ReadingHistory(ctx, tenant, reportingdomain.ReadingFilter{Page: 1})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestTenantReadingHistory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mine := testkit.SeedRoom(t, f.db, f.node, "T1", "30", "1000", tenant.ID)
	other := testkit.SeedRoom(t, f.db, f.node, "T2", "30", "1000", "")
	testkit.SeedReadings(t, f.db, f.node, mine.ID, may10, time.Minute, watts(4, 720)...)
	testkit.SeedReadings(t, f.db, f.node, mine.ID, time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC), time.Minute, 720)
	testkit.SeedReadings(t, f.db, f.node, other.ID, may10, time.Minute, watts(3, 720)...)

	got, err := f.svc.TenantReadingHistory(ctx, tenant, "2024-05", 1)
	require.NoError(t, err)
	assert.Equal(t, "T1", got.RoomNumber)
	assert.Len(t, got.Rows, 4)
	assert.True(t, got.TotalKWh.Equal(decimal.RequireFromString("0.004")), got.TotalKWh.String())
	assert.True(t, got.QuotaKWh.Equal(decimal.NewFromInt(30)))

	all, err := f.svc.TenantReadingHistory(ctx, tenant, "", 1)
	require.NoError(t, err)
	assert.Len(t, all.Rows, 5)

	_, err = f.svc.TenantReadingHistory(ctx, identity.Actor{ID: "tenant-2", Role: identity.RoleTenant}, "", 1)
	assert.ErrorIs(t, err, roomdomain.ErrNoRoom)
}

func TestListInvoices(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := testkit.SeedRoom(t, f.db, f.node, "A1", "0", "1000", tenant.ID)
	b := testkit.SeedRoom(t, f.db, f.node, "B1", "0", "1000", "")
	f.seedInvoice(t, a.ID, "2024-03", "10")
	f.seedInvoice(t, a.ID, "2024-05", "30")
	f.seedInvoice(t, b.ID, "2024-05", "50")

	all, err := f.svc.ListInvoices(ctx, owner, reportingdomain.InvoiceFilter{Page: 1})
	require.NoError(t, err)
	require.Len(t, all.Rows, 3)
	assert.Equal(t, "2024-05", all.Rows[0].Period)
	assert.Equal(t, "2024-03", all.Rows[2].Period)
	assert.Equal(t, 1, all.Page.TotalPages)

	byRoom, err := f.svc.ListInvoices(ctx, owner, reportingdomain.InvoiceFilter{RoomID: a.ID.String(), Page: 1})
	require.NoError(t, err)
	require.Len(t, byRoom.Rows, 2)
	assert.Equal(t, "A1", byRoom.Rows[0].RoomNumber)

	byMonth, err := f.svc.ListInvoices(ctx, owner, reportingdomain.InvoiceFilter{Month: "2024-05", Page: 1})
	require.NoError(t, err)
	assert.Len(t, byMonth.Rows, 2)

	mine, err := f.svc.TenantInvoices(ctx, tenant, "", 1)
	require.NoError(t, err)
	require.Len(t, mine.Rows, 2)
	for _, row := range mine.Rows {
		assert.Equal(t, a.ID.String(), row.RoomID)
	}

	_, err = f.svc.ListInvoices(ctx, tenant, reportingdomain.InvoiceFilter{Page: 1})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = f.svc.TenantInvoices(ctx, tenant, "May", 1)
	assert.ErrorIs(t, err, period.ErrInvalidPeriod)
}

func TestOwnerDashboard(t *testing.T) {
	f := setup(t)
	a := testkit.SeedRoom(t, f.db, f.node, "B2", "30", "1444.70", tenant.ID)
	testkit.SeedRoom(t, f.db, f.node, "A1", "10", "1000", "")
	f.seedInvoice(t, a.ID, "2024-04", "10")
	latest := f.seedInvoice(t, a.ID, "2024-05", "20")

	got, err := f.svc.OwnerDashboard(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, got.Rooms, 2)
	assert.Equal(t, "A1", got.Rooms[0].Number)
	assert.Nil(t, got.Rooms[0].LatestInvoice)

	require.NotNil(t, got.Rooms[1].LatestInvoice)
	assert.Equal(t, latest.ID.String(), got.Rooms[1].LatestInvoice.ID)
	require.NotNil(t, got.Rooms[1].OccupantID)
	assert.Equal(t, tenant.ID, *got.Rooms[1].OccupantID)

	_, err = f.svc.OwnerDashboard(context.Background(), tenant)
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestTenantDashboard(t *testing.T) {
	f := setup(t)
	room := testkit.SeedRoom(t, f.db, f.node, "A1", "30", "1000", tenant.ID)
	testkit.SeedReadings(t, f.db, f.node, room.ID, may10, time.Minute, 100, 200, 300, 400, 500, 600, 700, 800, 900)
	inv := f.seedInvoice(t, room.ID, "2024-04", "10")

	got, err := f.svc.TenantDashboard(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, "A1", got.Room.Number)
	require.NotNil(t, got.Room.LatestInvoice)
	assert.Equal(t, inv.ID.String(), got.Room.LatestInvoice.ID)
	require.Len(t, got.RecentReadings, reportingdomain.RecentReadingsLimit)
	assert.Equal(t, float64(900), got.RecentReadings[0].Watts)

	_, err = f.svc.TenantDashboard(context.Background(), owner)
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}
