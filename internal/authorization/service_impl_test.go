package authorization

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/roomwatt/internal/identity"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	enforcer, err := NewEnforcer(db)
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeRolePolicies(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	owner := identity.Actor{ID: "1", Role: identity.RoleOwner}
	tenant := identity.Actor{ID: "2", Role: identity.RoleTenant}
	device := identity.Actor{ID: "sensor-1", Role: identity.RoleDevice}

	cases := []struct {
		name   string
		actor  identity.Actor
		object string
		action string
		want   error
	}{
		{"owner confirms", owner, ObjectInvoice, ActionInvoiceConfirm, nil},
		{"owner cannot submit proof", owner, ObjectInvoice, ActionInvoiceSubmitProof, ErrForbidden},
		{"tenant submits proof", tenant, ObjectInvoice, ActionInvoiceSubmitProof, nil},
		{"tenant cannot confirm", tenant, ObjectInvoice, ActionInvoiceConfirm, ErrForbidden},
		{"tenant cannot generate", tenant, ObjectInvoice, ActionInvoiceGenerate, ErrForbidden},
		{"device ingests", device, ObjectReading, ActionReadingIngest, nil},
		{"device cannot view report", device, ObjectReading, ActionReadingViewAll, ErrForbidden},
		{"system generates", identity.System(), ObjectInvoice, ActionInvoiceGenerate, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tc.actor, tc.object, tc.action)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAuthorizeUsesRoleQualifiedSubjects(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if err := svc.Authorize(ctx, identity.Actor{ID: "9", Role: identity.RoleOwner}, ObjectRoom, ActionRoomCreate); err != nil {
		t.Fatalf("owner create: %v", err)
	}
	// Subjects are role-qualified, so a tenant with the same id never inherits owner rights.
	if err := svc.Authorize(ctx, identity.Actor{ID: "9", Role: identity.RoleTenant}, ObjectRoom, ActionRoomCreate); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAuthorizeRejectsInvalidInput(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if err := svc.Authorize(ctx, identity.Actor{Role: identity.RoleOwner}, ObjectRoom, ActionRoomView); !errors.Is(err, ErrInvalidActor) {
		t.Fatalf("expected ErrInvalidActor, got %v", err)
	}
	if err := svc.Authorize(ctx, identity.Actor{ID: "1", Role: identity.RoleOwner}, "", ActionRoomView); !errors.Is(err, ErrInvalidObject) {
		t.Fatalf("expected ErrInvalidObject, got %v", err)
	}
	if err := svc.Authorize(ctx, identity.Actor{ID: "1", Role: identity.RoleOwner}, ObjectRoom, " "); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}
