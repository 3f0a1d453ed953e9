// Package service holds the business workflows of the registry: role
// resolution, user provisioning and removal, customer records, migration,
// postal-code lookup and sessions.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/port"
	"github.com/boddenberg/customer-registry-bff/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var roleTracer = otel.Tracer("service/roles")

// RoleResolver derives the effective role of an account. Results are never cached.
type RoleResolver struct {
	roles  port.RoleStore
	logger *zap.Logger
}

// NewRoleResolver creates a new role resolver.
func NewRoleResolver(roles port.RoleStore, logger *zap.Logger) *RoleResolver {
	return &RoleResolver{roles: roles, logger: logger}
}

// EffectiveRole returns the stored role of userID, or operator when none is stored.
// A store failure is returned as a transient error, never as a role.
func (r *RoleResolver) EffectiveRole(ctx context.Context, userID string) (domain.Role, error) {
	ctx, span := roleTracer.Start(ctx, "RoleResolver.EffectiveRole")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	ra, err := r.roles.GetRole(ctx, userID)
	if err != nil {
		return "", transient("roles", err)
	}
	if ra == nil {
		return domain.DefaultRole, nil
	}
	if !ra.Role.Valid() {
		r.logger.Warn("unknown stored role, using default",
			zap.String("user_id", userID),
			zap.String("role", string(ra.Role)),
		)
		return domain.DefaultRole, nil
	}
	return ra.Role, nil
}

// IsAdmin reports whether userID resolves to admin. Failures resolve to false.
func (r *RoleResolver) IsAdmin(ctx context.Context, userID string) bool {
	role, err := r.EffectiveRole(ctx, userID)
	if err != nil {
		r.logger.Warn("role lookup failed, denying admin", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return role == domain.RoleAdmin
}

// Resolve builds the request principal for an authenticated account.
// When the store fails the caller gets the default role with RoleResolved unset,
// which denies every admin-only operation.
func (r *RoleResolver) Resolve(ctx context.Context, acc *domain.Account) domain.Caller {
	caller := domain.Caller{UserID: acc.ID, Email: acc.Email, Role: domain.DefaultRole}

	role, err := r.EffectiveRole(ctx, acc.ID)
	if err != nil {
		r.logger.Warn("role lookup failed, continuing with least privilege",
			zap.String("user_id", acc.ID),
			zap.Error(err),
		)
		return caller
	}
	caller.Role = role
	caller.RoleResolved = true
	return caller
}

// SetRole overwrites the role assignment of userID. Admin only.
func (r *RoleResolver) SetRole(ctx context.Context, caller domain.Caller, userID string, req *domain.UpdateRoleRequest) error {
	ctx, span := roleTracer.Start(ctx, "RoleResolver.SetRole")
	defer span.End()

	if !caller.IsAdmin() {
		return &domain.ErrForbidden{Action: "alterar permissões"}
	}

	req.Role = domain.Role(strings.TrimSpace(string(req.Role)))
	if err := validation.Struct(req); err != nil {
		return err
	}
	if err := validateUserID(userID); err != nil {
		return err
	}

	if err := r.roles.UpsertRole(ctx, userID, req.Role); err != nil {
		return transient("roles", err)
	}

	r.logger.Info("role updated",
		zap.String("user_id", userID),
		zap.String("role", string(req.Role)),
		zap.String("by", caller.UserID),
	)
	return nil
}

func validateUserID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &domain.ErrValidation{Field: "userId", Message: "deve ser um UUID válido"}
	}
	return nil
}

// transient classifies a store failure as retryable unless it already carries a domain meaning.
func transient(service string, err error) error {
	var (
		ext    *domain.ErrExternalService
		open   *domain.ErrCircuitOpen
		unauth *domain.ErrUnauthorized
		forb   *domain.ErrForbidden
		nf     *domain.ErrNotFound
		dup    *domain.ErrAlreadyExists
		bad    *domain.ErrValidation
	)
	switch {
	case errors.As(err, &ext), errors.As(err, &open), errors.As(err, &unauth),
		errors.As(err, &forb), errors.As(err, &nf), errors.As(err, &dup), errors.As(err, &bad):
		return err
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
