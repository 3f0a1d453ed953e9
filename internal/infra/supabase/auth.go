package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// IdentityStore implementation: GoTrue admin and session API
// ============================================================

type authUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u authUser) account() *domain.Account {
	a := &domain.Account{ID: u.ID, Email: u.Email}
	if nome, ok := u.UserMetadata["nome"].(string); ok {
		a.DisplayName = nome
	}
	return a
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         authUser `json:"user"`
}

// authErrorBody covers the error shapes GoTrue has used across versions.
type authErrorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (b authErrorBody) text() string {
	for _, s := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// classifyIdentityError maps a GoTrue rejection onto an identity error kind.
func classifyIdentityError(body []byte) *domain.ErrIdentity {
	var eb authErrorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.text()
	if msg == "" {
		msg = string(body)
	}

	kind := domain.IdentityOther
	switch {
	case eb.ErrorCode == "email_exists" || eb.ErrorCode == "user_already_exists",
		strings.Contains(msg, "already registered"),
		strings.Contains(msg, "already been registered"):
		kind = domain.IdentityAlreadyRegistered
	case eb.ErrorCode == "weak_password", strings.Contains(msg, "Password"):
		kind = domain.IdentityWeakPassword
	}
	return &domain.ErrIdentity{Kind: kind, Message: msg}
}

func (c *Client) authCall(method, path string, body any, apiKey, bearer string) call {
	return call{
		method: method,
		url:    fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path),
		path:   "auth/" + path,
		body:   body,
		apiKey: apiKey,
		bearer: bearer,
	}
}

// CreateAccount creates a confirmed account through the admin API.
// It is never retried.
func (c *Client) CreateAccount(ctx context.Context, email, password string, metadata map[string]any) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateAccount")
	defer span.End()

	payload := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
		"user_metadata": metadata,
	}

	body, err := c.write(ctx, c.authCall(http.MethodPost, "admin/users", payload, c.serviceRoleKey, c.serviceRoleKey))
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status < http.StatusInternalServerError {
			return nil, classifyIdentityError(ae.Body)
		}
		return nil, c.mapError("supabase/auth", err)
	}

	var u authUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/auth", Err: fmt.Errorf("decode user: %w", err)}
	}
	if u.ID == "" {
		return nil, &domain.ErrIdentity{Kind: domain.IdentityOther, Message: "Falha ao criar usuário"}
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return u.account(), nil
}

// DeleteAccount removes an account through the admin API.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteAccount")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	path := "admin/users/" + url.PathEscape(id)
	_, err := c.write(ctx, c.authCall(http.MethodDelete, path, nil, c.serviceRoleKey, c.serviceRoleKey))
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
			return &domain.ErrNotFound{Resource: "account", ID: id}
		}
		return c.mapError("supabase/auth", err)
	}
	return nil
}

// CurrentSession resolves the account owning accessToken.
func (c *Client) CurrentSession(ctx context.Context, accessToken string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CurrentSession")
	defer span.End()

	body, err := c.read(ctx, c.authCall(http.MethodGet, "user", nil, c.publicKey(), accessToken))
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status < http.StatusInternalServerError {
			return nil, &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
		}
		return nil, c.mapError("supabase/auth", err)
	}

	var u authUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/auth", Err: fmt.Errorf("decode user: %w", err)}
	}
	if u.ID == "" {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
	}
	return u.account(), nil
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignIn")
	defer span.End()

	payload := map[string]string{"email": email, "password": password}
	key := c.publicKey()
	body, err := c.write(ctx, c.authCall(http.MethodPost, "token?grant_type=password", payload, key, key))
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status < http.StatusInternalServerError {
			return nil, &domain.ErrUnauthorized{Message: "Email ou senha inválidos"}
		}
		return nil, c.mapError("supabase/auth", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/auth", Err: fmt.Errorf("decode token: %w", err)}
	}

	expiresAt := time.Unix(tr.ExpiresAt, 0).UTC()
	if tr.ExpiresAt == 0 {
		expiresAt = time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return &domain.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expiresAt,
		Account:      *tr.User.account(),
	}, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	_, err := c.write(ctx, c.authCall(http.MethodPost, "logout", nil, c.publicKey(), accessToken))
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status < http.StatusInternalServerError {
			return &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
		}
		return c.mapError("supabase/auth", err)
	}
	return nil
}

// Ping checks that the auth service answers. It bypasses the breaker so a
// readiness probe never trips it.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.send(ctx, c.authCall(http.MethodGet, "health", nil, c.publicKey(), c.publicKey()))
	if err != nil {
		return c.mapError("supabase/auth", err)
	}
	return nil
}
