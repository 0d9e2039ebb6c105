package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/opencrmhq/opencrm/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization = "organization"
	ObjectProfile      = "profile"
	ObjectLead         = "lead"
	ObjectContact      = "contact"
	ObjectAccount      = "account"
	ObjectOpportunity  = "opportunity"
	ObjectCase         = "case"
	ObjectTask         = "task"
	ObjectTeam         = "team"
	ObjectInvoice      = "invoice"
	ObjectOrder        = "order"
	ObjectBoard        = "board"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"

	ActionLeadConvert     = "lead.convert"
	ActionInvoiceFinalize = "invoice.finalize"
	ActionInvoicePDF      = "invoice.pdf"
	ActionProfileManage   = "profile.manage"
	ActionBoardManage     = "board.manage"
	ActionAuditLogView    = "audit_log.view"
	ActionRLSStatusView   = "rls_status.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
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
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, orgID snowflake.ID, object, action string) error {
	object = strings.TrimSpace(object)
	action = strings.TrimSpace(action)
	if orgID == 0 || object == "" || action == "" {
		return ErrForbidden
	}

	subject, roleName, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		s.auditDenied(ctx, actor, orgID, object, action)
		return err
	}

	dom := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, dom); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, dom, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actor, orgID, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) Grant(ctx context.Context, actor Actor, orgID snowflake.ID, role string) error {
	subject, err := subjectFor(actor)
	if err != nil {
		return err
	}
	dom := fmt.Sprintf("org:%s", orgID)
	_, err = s.enforcer.AddGroupingPolicy(subject, role, dom)
	return err
}

func (s *ServiceImpl) Revoke(ctx context.Context, actor Actor, orgID snowflake.ID, role string) error {
	subject, err := subjectFor(actor)
	if err != nil {
		return err
	}
	dom := fmt.Sprintf("org:%s", orgID)
	_, err = s.enforcer.RemoveGroupingPolicy(subject, role, dom)
	return err
}

func subjectFor(actor Actor) (string, error) {
	switch actor.Kind {
	case ActorSystem:
		return "system", nil
	case ActorUser:
		if actor.ID == 0 {
			return "", ErrUnknownActor
		}
		return fmt.Sprintf("user:%s", actor.ID), nil
	}
	return "", ErrUnknownActor
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor Actor, orgID snowflake.ID) (string, string, error) {
	subject, err := subjectFor(actor)
	if err != nil {
		return "", "", err
	}
	if actor.Kind == ActorSystem {
		return subject, "role:system", nil
	}
	role, err := s.roleForUser(ctx, orgID, actor.ID)
	if err != nil {
		return subject, "", err
	}
	return subject, fmt.Sprintf("role:%s", strings.ToLower(role)), nil
}

// roleForUser reads the membership role directly from the profiles
// table. Identity tables sit outside row-level security on purpose:
// this lookup happens before any tenant context is established.
func (s *ServiceImpl) roleForUser(ctx context.Context, orgID, userID snowflake.ID) (string, error) {
	var row struct {
		Role     string `gorm:"column:role"`
		IsActive bool   `gorm:"column:is_active"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role, is_active
		 FROM profiles
		 WHERE org_id = ? AND user_id = ?
		 LIMIT 1`,
		orgID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" || !row.IsActive {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject, roleName, dom string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", dom)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, dom)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, dom)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor Actor, orgID snowflake.ID, object, action string) {
	if s.auditSvc == nil {
		return
	}
	var actorID *string
	if actor.ID != 0 {
		id := actor.ID.String()
		actorID = &id
	}
	targetID := "capability"
	s.auditSvc.Record(ctx, orgID, string(actor.Kind), actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"org_id": orgID.String(),
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	crud := []string{ActionView, ActionCreate, ActionUpdate, ActionDelete}
	records := []string{
		ObjectLead, ObjectContact, ObjectAccount, ObjectOpportunity,
		ObjectCase, ObjectTask, ObjectInvoice, ObjectOrder, ObjectBoard,
	}

	policies := [][]string{
		// Members read shared org resources.
		{RoleUserSubject, "*", ObjectTeam, ActionView},
		{RoleUserSubject, "*", ObjectOrganization, ActionView},

		// Admins hold every capability within their org; object and
		// module gates are enforced separately.
		{RoleAdminSubject, "*", "*", "*"},

		// Conversions and exports are member-level features.
		{RoleUserSubject, "*", ObjectLead, ActionLeadConvert},
		{RoleUserSubject, "*", ObjectInvoice, ActionInvoicePDF},
	}
	for _, object := range records {
		for _, action := range crud {
			policies = append(policies, []string{RoleUserSubject, "*", object, action})
		}
	}
	policies = append(policies, []string{"role:system", "*", "*", "*"})

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
