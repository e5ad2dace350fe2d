// Package testkit holds fixtures shared by service tests: an in-memory
// database with the real schema, an id node and a seeded authorizer.
package testkit

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	usagedomain "github.com/smallbiznis/roomwatt/internal/usage/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var nameReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// OpenDB opens a shared-cache in-memory sqlite database private to the test
// and migrates the domain tables.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", nameReplacer.Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// shared-cache memory databases disappear with their last connection.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&roomdomain.Room{},
		&usagedomain.Reading{},
		&invoicedomain.Invoice{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func IDNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// Authorizer returns the casbin-backed authorization service with the default
// role policies stored in db.
func Authorizer(t *testing.T, db *gorm.DB) authorization.Service {
	t.Helper()
	enforcer, err := authorization.NewEnforcer(db)
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	return authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
}

// SeedRoom inserts a room bypassing authorization.
func SeedRoom(t *testing.T, db *gorm.DB, node *snowflake.Node, number string, quota, tariff string, occupant string) roomdomain.Room {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	room := roomdomain.Room{
		ID:         node.Generate(),
		Number:     number,
		QuotaKWh:   decimal.RequireFromString(quota),
		TariffRate: decimal.RequireFromString(tariff),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if occupant != "" {
		room.OccupantID = &occupant
	}
	if err := db.Create(&room).Error; err != nil {
		t.Fatalf("seed room %s: %v", number, err)
	}
	return room
}

// SeedReadings inserts one reading per value, spaced by step starting at from.
func SeedReadings(t *testing.T, db *gorm.DB, node *snowflake.Node, roomID snowflake.ID, from time.Time, step time.Duration, watts ...float64) {
	t.Helper()
	for i, w := range watts {
		at := from.Add(time.Duration(i) * step).UTC()
		reading := usagedomain.Reading{
			ID:         node.Generate(),
			RoomID:     roomID,
			Watts:      w,
			RecordedAt: at,
			CreatedAt:  at,
		}
		if err := db.WithContext(context.Background()).Create(&reading).Error; err != nil {
			t.Fatalf("seed reading: %v", err)
		}
	}
}
