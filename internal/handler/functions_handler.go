package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Privileged endpoints: /functions/v1/*
// ============================================================

type createUserResponse struct {
	Success bool                    `json:"success"`
	User    *domain.ProvisionedUser `json:"user"`
	Warning string                  `json:"warning,omitempty"`
}

type successResponse struct {
	Success  bool     `json:"success"`
	Warnings []string `json:"warnings,omitempty"`
}

// preflightHandler answers CORS preflight requests with an empty 200.
func preflightHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func adminCreateUserHandler(provisioner *service.Provisioner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /functions/v1/admin-create-user")
		defer span.End()

		var req domain.CreateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		result, err := provisioner.CreateUser(ctx, callerFrom(r), &req)
		if err != nil {
			handleFunctionError(w, err, logger)
			return
		}

		resp := createUserResponse{Success: true, User: result.User}
		if result.Outcome == domain.OutcomeCreatedWithWarning {
			resp.Warning = strings.Join(result.Warnings, " ")
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func adminDeleteUserHandler(provisioner *service.Provisioner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /functions/v1/admin-delete-user")
		defer span.End()

		var req domain.DeleteUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		result, err := provisioner.RemoveUser(ctx, callerFrom(r), &req)
		if err != nil {
			handleFunctionError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true, Warnings: result.Warnings})
	}
}
