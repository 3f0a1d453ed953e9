package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"
	"github.com/boddenberg/customer-registry-bff/internal/port"
	"github.com/boddenberg/customer-registry-bff/internal/validation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var provisionTracer = otel.Tracer("service/provisioner")

// User-facing messages of the provisioning workflow.
const (
	msgEmailTaken     = "Este email já está cadastrado"
	msgWeakPassword   = "Senha deve ter pelo menos 6 caracteres"
	msgCreateFailed   = "Erro ao criar usuário"
	msgProfileFailed  = "Usuário criado mas erro ao salvar perfil"
	msgRoleFailed     = "Usuário criado mas erro ao definir permissões. Defina as permissões manualmente."
	msgDeleteFailed   = "Erro ao deletar usuário do Auth"
	msgRoleCleanup    = "Erro ao remover permissões do usuário"
	msgProfileCleanup = "Erro ao remover perfil do usuário"
)

// Removal results, as counted by the removals metric.
const (
	removalRemoved            = "removed"
	removalRemovedWithWarning = "removed_with_warning"
	removalFailed             = "failed"
)

// Provisioner creates and removes users across the identity provider and the
// profiles and user_roles tables. The steps run in order and are never compensated.
type Provisioner struct {
	identity port.IdentityStore
	profiles port.ProfileStore
	roles    port.RoleStore
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewProvisioner creates a new provisioner.
func NewProvisioner(identity port.IdentityStore, profiles port.ProfileStore, roles port.RoleStore, metrics *observability.Metrics, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		identity: identity,
		profiles: profiles,
		roles:    roles,
		metrics:  metrics,
		logger:   logger,
	}
}

// ============================================================
// CreateUser: POST /functions/v1/admin-create-user
// ============================================================

// CreateUser runs account → profile → role.
//
// A failed account step rejects the request and nothing is created. A failed
// profile or role step leaves the account in place and is reported as a warning.
func (p *Provisioner) CreateUser(ctx context.Context, caller domain.Caller, req *domain.CreateUserRequest) (*domain.ProvisionResult, error) {
	ctx, span := provisionTracer.Start(ctx, "Provisioner.CreateUser")
	defer span.End()

	start := time.Now()
	defer func() {
		p.metrics.RecordRequestDuration("create_user", time.Since(start))
	}()

	if !caller.IsAdmin() {
		p.metrics.IncrProvisioning(domain.OutcomeRejected)
		p.logger.Warn("create user: caller is not admin", zap.String("caller_id", caller.UserID))
		return nil, &domain.ErrForbidden{Action: "criar usuário"}
	}

	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validation.Struct(req); err != nil {
		p.metrics.IncrProvisioning(domain.OutcomeRejected)
		return nil, err
	}
	span.SetAttributes(attribute.String("role", string(req.Role)))

	p.logger.Info("creating user",
		zap.String("email", req.Email),
		zap.String("role", string(req.Role)),
		zap.String("by", caller.UserID),
	)

	// Step 1: account. Nothing exists yet, so a failure here is a clean rejection.
	acc, err := p.identity.CreateAccount(ctx, req.Email, req.Password, map[string]any{"nome": req.DisplayName})
	if err != nil {
		p.metrics.IncrProvisioning(domain.OutcomeRejected)
		p.logger.Error("create user: account step failed", zap.String("email", req.Email), zap.Error(err))
		return nil, accountError(err)
	}
	span.SetAttributes(attribute.String("user.id", acc.ID))

	result := &domain.ProvisionResult{
		Outcome: domain.OutcomeCreated,
		User: &domain.ProvisionedUser{
			ID:          acc.ID,
			Email:       acc.Email,
			DisplayName: req.DisplayName,
			Role:        req.Role,
		},
	}
	if result.User.Email == "" {
		result.User.Email = req.Email
	}

	// Step 2: profile.
	profile := &domain.Profile{ID: acc.ID, Email: result.User.Email, DisplayName: req.DisplayName}
	if err := p.profiles.InsertProfile(ctx, profile); err != nil {
		p.logger.Error("create user: profile step failed, account kept",
			zap.String("user_id", acc.ID),
			zap.Error(err),
		)
		p.metrics.IncrExternalError("profiles")
		result.Warnings = append(result.Warnings, msgProfileFailed)
		result.Failures = append(result.Failures, &domain.ErrPartialProvisioning{Step: domain.StepProfile, Err: err})
	}

	// Step 3: role. Without it the account resolves to the default role.
	if err := p.roles.UpsertRole(ctx, acc.ID, req.Role); err != nil {
		p.logger.Error("create user: role step failed, account kept",
			zap.String("user_id", acc.ID),
			zap.String("role", string(req.Role)),
			zap.Error(err),
		)
		p.metrics.IncrExternalError("roles")
		result.User.Role = domain.DefaultRole
		result.Warnings = append(result.Warnings, msgRoleFailed)
		result.Failures = append(result.Failures, &domain.ErrPartialProvisioning{Step: domain.StepRole, Err: err})
	}

	if len(result.Failures) > 0 {
		result.Outcome = domain.OutcomeCreatedWithWarning
	}
	p.metrics.IncrProvisioning(result.Outcome)
	p.logger.Info("user created",
		zap.String("user_id", acc.ID),
		zap.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

// accountError translates an identity rejection into the error shown to the admin.
func accountError(err error) error {
	var idErr *domain.ErrIdentity
	if !errors.As(err, &idErr) {
		return err
	}
	switch idErr.Kind {
	case domain.IdentityAlreadyRegistered:
		return &domain.ErrAlreadyExists{Message: msgEmailTaken}
	case domain.IdentityWeakPassword:
		return &domain.ErrValidation{Field: "password", Message: msgWeakPassword}
	default:
		return &domain.ErrIdentity{Kind: domain.IdentityOther, Message: msgCreateFailed}
	}
}

// ============================================================
// RemoveUser: POST /functions/v1/admin-delete-user
// ============================================================

// RemoveUser deletes the account, then its role row, then its profile row.
// Only the account deletion can fail the request; an account that is already
// gone counts as deleted. Cleanup failures come back as warnings.
func (p *Provisioner) RemoveUser(ctx context.Context, caller domain.Caller, req *domain.DeleteUserRequest) (*domain.RemovalResult, error) {
	ctx, span := provisionTracer.Start(ctx, "Provisioner.RemoveUser")
	defer span.End()

	start := time.Now()
	defer func() {
		p.metrics.RecordRequestDuration("remove_user", time.Since(start))
	}()

	if !caller.IsAdmin() {
		p.metrics.IncrRemoval(removalFailed)
		p.logger.Warn("remove user: caller is not admin", zap.String("caller_id", caller.UserID))
		return nil, &domain.ErrForbidden{Action: "remover usuário"}
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if err := validation.Struct(req); err != nil {
		p.metrics.IncrRemoval(removalFailed)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", req.UserID))

	if err := p.identity.DeleteAccount(ctx, req.UserID); err != nil {
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			p.metrics.IncrRemoval(removalFailed)
			p.logger.Error("remove user: account deletion failed", zap.String("user_id", req.UserID), zap.Error(err))
			var open *domain.ErrCircuitOpen
			if errors.As(err, &open) {
				return nil, err
			}
			return nil, &domain.ErrIdentity{Kind: domain.IdentityOther, Message: msgDeleteFailed}
		}
		p.logger.Info("remove user: account already absent", zap.String("user_id", req.UserID))
	}

	result := &domain.RemovalResult{UserID: req.UserID}

	if err := p.roles.DeleteRole(ctx, req.UserID); err != nil {
		p.logger.Warn("remove user: role cleanup failed", zap.String("user_id", req.UserID), zap.Error(err))
		result.Warnings = append(result.Warnings, msgRoleCleanup)
	}
	if err := p.profiles.DeleteProfile(ctx, req.UserID); err != nil {
		p.logger.Warn("remove user: profile cleanup failed", zap.String("user_id", req.UserID), zap.Error(err))
		result.Warnings = append(result.Warnings, msgProfileCleanup)
	}

	if len(result.Warnings) > 0 {
		p.metrics.IncrRemoval(removalRemovedWithWarning)
	} else {
		p.metrics.IncrRemoval(removalRemoved)
	}
	p.logger.Info("user removed", zap.String("user_id", req.UserID), zap.String("by", caller.UserID))
	return result, nil
}

// ============================================================
// ListUsers: GET /v1/admin/users
// ============================================================

// ListUsers merges profiles with their role assignments, newest first.
// Profiles without an assignment show the default role.
func (p *Provisioner) ListUsers(ctx context.Context, caller domain.Caller) ([]domain.UserSummary, error) {
	ctx, span := provisionTracer.Start(ctx, "Provisioner.ListUsers")
	defer span.End()

	if !caller.IsAdmin() {
		return nil, &domain.ErrForbidden{Action: "listar usuários"}
	}

	var (
		profiles []domain.Profile
		roles    []domain.RoleAssignment
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ps, err := p.profiles.ListProfiles(gCtx)
		if err != nil {
			p.metrics.IncrExternalError("profiles")
			return transient("profiles", err)
		}
		profiles = ps
		return nil
	})
	g.Go(func() error {
		rs, err := p.roles.ListRoles(gCtx)
		if err != nil {
			p.metrics.IncrExternalError("roles")
			return transient("roles", err)
		}
		roles = rs
		return nil
	})
	if err := g.Wait(); err != nil {
		p.logger.Error("list users failed", zap.Error(err))
		return nil, err
	}

	byUser := make(map[string]domain.Role, len(roles))
	for _, ra := range roles {
		byUser[ra.UserID] = ra.Role
	}

	users := make([]domain.UserSummary, 0, len(profiles))
	for _, pr := range profiles {
		role, ok := byUser[pr.ID]
		if !ok || !role.Valid() {
			role = domain.DefaultRole
		}
		users = append(users, domain.UserSummary{
			ID:          pr.ID,
			Email:       pr.Email,
			DisplayName: pr.DisplayName,
			Role:        role,
			CreatedAt:   pr.CreatedAt,
		})
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}
