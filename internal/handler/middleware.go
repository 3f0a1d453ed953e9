package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"go.uber.org/zap"
)

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// statusPolicy rewrites the status of an error answer for a route group.
type statusPolicy func(status int) int

// apiStatus keeps statuses as classified.
func apiStatus(status int) int { return status }

// functionStatus folds statuses into the 200/400/500 contract of the
// admin-create-user and admin-delete-user endpoints.
func functionStatus(status int) int {
	switch {
	case status >= http.StatusInternalServerError:
		return http.StatusInternalServerError
	case status >= http.StatusBadRequest:
		return http.StatusBadRequest
	}
	return status
}

// Authenticate validates the bearer token, resolves the caller's role for this
// request and injects both the token and the caller into the context.
func Authenticate(sessions *service.SessionService, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(sessions, logger, apiStatus)
}

// RequireAdmin rejects callers that do not resolve to admin on this request.
// A caller whose role could not be looked up gets 503, never admin access.
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return requireAdmin(logger, apiStatus)
}

func authenticate(sessions *service.SessionService, logger *zap.Logger, policy statusPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				logger.Warn("auth: missing or malformed token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, policy(http.StatusUnauthorized), msgNoToken)
				return
			}

			caller, err := sessions.Caller(r.Context(), token)
			if err != nil {
				logger.Warn("auth: token rejected",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				renderError(w, err, logger, policy)
				return
			}

			ctx := domain.WithAccessToken(r.Context(), token)
			ctx = domain.WithCaller(ctx, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requireAdmin(logger *zap.Logger, policy statusPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := domain.CallerFromContext(r.Context())
			if !ok {
				writeError(w, policy(http.StatusUnauthorized), msgNoToken)
				return
			}
			if !caller.RoleResolved {
				logger.Warn("authz: role unresolved, denying admin route",
					zap.String("user_id", caller.UserID),
					zap.String("path", r.URL.Path),
				)
				writeError(w, policy(http.StatusServiceUnavailable), msgUnavailable)
				return
			}
			if !caller.IsAdmin() {
				logger.Warn("authz: admin required",
					zap.String("user_id", caller.UserID),
					zap.String("path", r.URL.Path),
				)
				writeError(w, policy(http.StatusForbidden), msgAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// callerFrom returns the principal injected by Authenticate.
func callerFrom(r *http.Request) domain.Caller {
	c, _ := domain.CallerFromContext(r.Context())
	return c
}
