package services

import (
	"context"
	"errors"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/cache"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/repository"
	"go.uber.org/zap"
)

const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionManage = "manage"

	SubjectProduct   = "product"
	SubjectOrder     = "order"
	SubjectAccount   = "account"
	SubjectMarketing = "marketing"
	SubjectImage     = "image"
	SubjectRole      = "role"
	SubjectAll       = "all"
)

var (
	validActions  = map[string]bool{ActionRead: true, ActionCreate: true, ActionUpdate: true, ActionDelete: true, ActionManage: true}
	validSubjects = map[string]bool{SubjectProduct: true, SubjectOrder: true, SubjectAccount: true, SubjectMarketing: true, SubjectImage: true, SubjectRole: true, SubjectAll: true}
)

// abilityModel grants a request when a policy names the subject or "all",
// and the action or "manage".
const abilityModel = `
[request_definition]
r = obj, act

[policy_definition]
p = obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.obj == r.obj || p.obj == "all") && (p.act == r.act || p.act == "manage")
`

// Ability answers permission questions for one role.
type Ability struct {
	enforcer *casbin.Enforcer
}

// NewAbility loads "action:subject" permissions as policies. Malformed
// entries are skipped; an Ability that fails to build denies everything.
func NewAbility(permissions []string) *Ability {
	m, err := model.NewModelFromString(abilityModel)
	if err != nil {
		return &Ability{}
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return &Ability{}
	}
	for _, p := range permissions {
		action, subject, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		if _, err := e.AddPolicy(subject, action); err != nil {
			return &Ability{}
		}
	}
	return &Ability{enforcer: e}
}

// Can reports whether action on subject is granted, directly, through
// manage, or through the "all" subject.
func (a *Ability) Can(action, subject string) bool {
	if a == nil || a.enforcer == nil {
		return false
	}
	ok, err := a.enforcer.Enforce(subject, action)
	return err == nil && ok
}

// CanOwn allows the owner of a resource through regardless of role.
func (a *Ability) CanOwn(action, subject string, ownerID, actorID uuid.UUID) bool {
	if ownerID != uuid.Nil && ownerID == actorID {
		return true
	}
	return a.Can(action, subject)
}

// ValidatePermission checks the "action:subject" form.
func ValidatePermission(p string) error {
	action, subject, ok := strings.Cut(p, ":")
	if !ok || !validActions[action] || !validSubjects[subject] {
		return apperrors.WithDetails(apperrors.ErrValidation, map[string]string{"permissions": p})
	}
	return nil
}

type PermissionService interface {
	AbilityFor(ctx context.Context, role string) (*Ability, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	CreateRole(ctx context.Context, req models.RoleRequest) (*models.Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, req models.RoleRequest) (*models.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
}

type permissionService struct {
	store repository.Store
	cache cache.RoleCache
	log   *zap.Logger
}

func NewPermissionService(store repository.Store, roleCache cache.RoleCache, log *zap.Logger) PermissionService {
	return &permissionService{store: store, cache: roleCache, log: log}
}

func (s *permissionService) AbilityFor(ctx context.Context, role string) (*Ability, error) {
	if s.cache != nil {
		perms, err := s.cache.GetPermissions(ctx, role)
		if err == nil {
			return NewAbility(perms), nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("role cache read failed", zap.String("role", role), zap.Error(err))
		}
	}

	r, err := s.store.Roles().FindByName(ctx, role)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrForbidden)
	}

	if s.cache != nil {
		if err := s.cache.SetPermissions(ctx, role, r.Permissions); err != nil {
			s.log.Warn("role cache write failed", zap.String("role", role), zap.Error(err))
		}
	}
	return NewAbility(r.Permissions), nil
}

func (s *permissionService) ListRoles(ctx context.Context) ([]models.Role, error) {
	roles, err := s.store.Roles().List(ctx)
	return roles, dbError(err)
}

func (s *permissionService) CreateRole(ctx context.Context, req models.RoleRequest) (*models.Role, error) {
	if err := validatePermissions(req.Permissions); err != nil {
		return nil, err
	}
	role := &models.Role{
		Name:        strings.ToLower(strings.TrimSpace(req.Name)),
		Description: req.Description,
		Permissions: req.Permissions,
	}
	if err := s.store.Roles().Create(ctx, role); err != nil {
		return nil, dbError(err)
	}
	return role, nil
}

func (s *permissionService) UpdateRole(ctx context.Context, id uuid.UUID, req models.RoleRequest) (*models.Role, error) {
	if err := validatePermissions(req.Permissions); err != nil {
		return nil, err
	}
	role, err := s.store.Roles().FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrNotFound)
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	if role.IsBuiltIn() && name != role.Name {
		return nil, apperrors.WithMessage(apperrors.ErrConflict, "Built-in roles cannot be renamed")
	}
	oldName := role.Name
	role.Name = name
	role.Description = req.Description
	role.Permissions = req.Permissions

	if err := s.store.Roles().Update(ctx, role); err != nil {
		return nil, dbError(err)
	}
	s.forget(ctx, oldName)
	return role, nil
}

func (s *permissionService) DeleteRole(ctx context.Context, id uuid.UUID) error {
	role, err := s.store.Roles().FindByID(ctx, id)
	if err != nil {
		return notFoundAs(err, apperrors.ErrNotFound)
	}
	if role.IsBuiltIn() {
		return apperrors.WithMessage(apperrors.ErrConflict, "Built-in roles cannot be deleted")
	}

	n, err := s.store.Accounts().CountByRole(ctx, role.ID)
	if err != nil {
		return dbError(err)
	}
	if n > 0 {
		return apperrors.WithMessage(apperrors.ErrConflict, "Role is still assigned to accounts")
	}

	if err := s.store.Roles().Delete(ctx, role.ID); err != nil {
		return dbError(err)
	}
	s.forget(ctx, role.Name)
	return nil
}

func (s *permissionService) forget(ctx context.Context, role string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, role); err != nil {
		s.log.Warn("role cache delete failed", zap.String("role", role), zap.Error(err))
	}
}

func validatePermissions(perms []string) error {
	for _, p := range perms {
		if err := ValidatePermission(p); err != nil {
			return err
		}
	}
	return nil
}
