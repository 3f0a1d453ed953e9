package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/port"
	"github.com/boddenberg/customer-registry-bff/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var sessionTracer = otel.Tracer("service/session")

// accessClaims are the claims of an identity-provider access token.
type accessClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// SessionService authenticates bearer tokens and manages sign-in/sign-out.
type SessionService struct {
	identity  port.IdentityStore
	resolver  *RoleResolver
	jwtSecret []byte
	logger    *zap.Logger
}

// NewSessionService creates a session service. With an empty jwtSecret every
// token is checked against the identity provider.
func NewSessionService(identity port.IdentityStore, resolver *RoleResolver, jwtSecret string, logger *zap.Logger) *SessionService {
	return &SessionService{
		identity:  identity,
		resolver:  resolver,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// Authenticate returns the account owning accessToken.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*domain.Account, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.Authenticate")
	defer span.End()

	if accessToken == "" {
		return nil, &domain.ErrUnauthorized{Message: "Token de acesso ausente"}
	}
	if len(s.jwtSecret) > 0 {
		return s.verifyLocally(accessToken)
	}
	return s.identity.CurrentSession(ctx, accessToken)
}

func (s *SessionService) verifyLocally(accessToken string) (*domain.Account, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &domain.ErrUnauthorized{Message: "Sessão expirada"}
		}
		s.logger.Debug("access token rejected", zap.Error(err))
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
	}
	if claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
	}

	acc := &domain.Account{ID: claims.Subject, Email: claims.Email}
	if nome, ok := claims.UserMetadata["nome"].(string); ok {
		acc.DisplayName = nome
	}
	return acc, nil
}

// Caller authenticates accessToken and resolves the role for this request.
func (s *SessionService) Caller(ctx context.Context, accessToken string) (domain.Caller, error) {
	acc, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return domain.Caller{}, err
	}
	return s.resolver.Resolve(ctx, acc), nil
}

// SignIn exchanges credentials for a session.
func (s *SessionService) SignIn(ctx context.Context, req *domain.LoginRequest) (*domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.SignIn")
	defer span.End()

	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	session, err := s.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Warn("sign in failed", zap.String("email", req.Email), zap.Error(err))
		return nil, err
	}
	s.logger.Info("signed in", zap.String("user_id", session.Account.ID))
	return session, nil
}

// SignOut revokes the session behind accessToken.
func (s *SessionService) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := sessionTracer.Start(ctx, "SessionService.SignOut")
	defer span.End()

	return s.identity.SignOut(ctx, accessToken)
}

// Me describes the caller of the current request.
func (s *SessionService) Me(caller domain.Caller) *domain.SessionInfo {
	return &domain.SessionInfo{
		ID:           caller.UserID,
		Email:        caller.Email,
		Role:         caller.Role,
		IsAdmin:      caller.IsAdmin(),
		RoleResolved: caller.RoleResolved,
	}
}
