package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/roomwatt/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectRoom      = "room"
	ObjectReading   = "reading"
	ObjectInvoice   = "invoice"
	ObjectDashboard = "dashboard"
)

const (
	ActionRoomView       = "room.view"
	ActionRoomCreate     = "room.create"
	ActionRoomUpdate     = "room.update"
	ActionRoomDelete     = "room.delete"
	ActionRoomAssign     = "room.assign"
	ActionRoomSwitch     = "room.switch"
	ActionRoomSwitchView = "room.switch_view"

	ActionReadingIngest  = "reading.ingest"
	ActionReadingViewAll = "reading.view_all"
	ActionReadingViewOwn = "reading.view_own"

	ActionInvoiceGenerate    = "invoice.generate"
	ActionInvoiceConfirm     = "invoice.confirm"
	ActionInvoiceReject      = "invoice.reject"
	ActionInvoiceSubmitProof = "invoice.submit_proof"
	ActionInvoiceViewAll     = "invoice.view_all"
	ActionInvoiceViewOwn     = "invoice.view_own"

	ActionDashboardOwner  = "dashboard.owner"
	ActionDashboardTenant = "dashboard.tenant"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor identity.Actor, object string, action string) error {
	if err := actor.Validate(); err != nil {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := actor.Subject()
	if err := s.ensureGrouping(subject, roleName(actor.Role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("actor_role", string(actor.Role)),
			zap.String("actor_id", actor.ID),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping binds the subject to exactly one role, dropping any stale
// link left from a token issued with another role.
func (s *ServiceImpl) ensureGrouping(subject string, role string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == role {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, role)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func roleName(role identity.Role) string {
	return "role:" + string(role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	owner := roleName(identity.RoleOwner)
	tenant := roleName(identity.RoleTenant)
	device := roleName(identity.RoleDevice)
	system := roleName(identity.RoleSystem)

	policies := [][]string{
		{owner, ObjectRoom, ActionRoomView},
		{owner, ObjectRoom, ActionRoomCreate},
		{owner, ObjectRoom, ActionRoomUpdate},
		{owner, ObjectRoom, ActionRoomDelete},
		{owner, ObjectRoom, ActionRoomAssign},
		{owner, ObjectRoom, ActionRoomSwitch},
		{owner, ObjectRoom, ActionRoomSwitchView},
		{owner, ObjectInvoice, ActionInvoiceGenerate},
		{owner, ObjectInvoice, ActionInvoiceConfirm},
		{owner, ObjectInvoice, ActionInvoiceReject},
		{owner, ObjectInvoice, ActionInvoiceViewAll},
		{owner, ObjectReading, ActionReadingViewAll},
		{owner, ObjectDashboard, ActionDashboardOwner},

		{tenant, ObjectInvoice, ActionInvoiceSubmitProof},
		{tenant, ObjectInvoice, ActionInvoiceViewOwn},
		{tenant, ObjectReading, ActionReadingViewOwn},
		{tenant, ObjectDashboard, ActionDashboardTenant},

		{device, ObjectReading, ActionReadingIngest},
		{device, ObjectRoom, ActionRoomSwitchView},

		{system, ObjectInvoice, ActionInvoiceGenerate},
		{system, ObjectReading, ActionReadingIngest},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
