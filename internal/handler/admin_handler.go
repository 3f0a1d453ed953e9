package handler

import (
	"net/http"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// User management: /v1/admin/users
// ============================================================

func listUsersHandler(provisioner *service.Provisioner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/users")
		defer span.End()

		users, err := provisioner.ListUsers(ctx, callerFrom(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func updateRoleHandler(roles *service.RoleResolver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/users/{userId}/role")
		defer span.End()

		var req domain.UpdateRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		userID := chi.URLParam(r, "userId")
		if err := roles.SetRole(ctx, callerFrom(r), userID, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.RoleAssignment{UserID: userID, Role: req.Role})
	}
}
