package supabase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// ProfileStore + RoleStore implementation: profiles, user_roles
// ============================================================

type profileRow struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Nome      string     `json:"nome"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func (r profileRow) toDomain() domain.Profile {
	p := domain.Profile{ID: r.ID, Email: r.Email, DisplayName: r.Nome}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	return p
}

func (c *Client) InsertProfile(ctx context.Context, p *domain.Profile) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", p.ID))

	row := profileRow{ID: p.ID, Email: p.Email, Nome: p.DisplayName}
	if _, err := c.doPost(ctx, "profiles", row); err != nil {
		return c.mapError("supabase/profiles", err)
	}
	return nil
}

func (c *Client) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	body, err := c.doRequest(ctx, fmt.Sprintf("profiles?id=eq.%s&limit=1", url.QueryEscape(id)))
	if err != nil {
		return nil, c.mapError("supabase/profiles", err)
	}
	rows, err := decodeRows[profileRow](body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/profiles", Err: fmt.Errorf("decode profiles: %w", err)}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := rows[0].toDomain()
	return &p, nil
}

func (c *Client) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProfiles")
	defer span.End()

	body, err := c.doRequest(ctx, "profiles?select=*&order=created_at.desc")
	if err != nil {
		return nil, c.mapError("supabase/profiles", err)
	}
	rows, err := decodeRows[profileRow](body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/profiles", Err: fmt.Errorf("decode profiles: %w", err)}
	}

	profiles := make([]domain.Profile, 0, len(rows))
	for _, r := range rows {
		profiles = append(profiles, r.toDomain())
	}
	return profiles, nil
}

func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	if err := c.doDelete(ctx, "profiles?id=eq."+url.QueryEscape(id)); err != nil {
		return c.mapError("supabase/profiles", err)
	}
	return nil
}

// --- user_roles ---

func (c *Client) GetRole(ctx context.Context, userID string) (*domain.RoleAssignment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRole")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	body, err := c.doRequest(ctx, fmt.Sprintf("user_roles?user_id=eq.%s&select=user_id,role&limit=1", url.QueryEscape(userID)))
	if err != nil {
		return nil, c.mapError("supabase/user_roles", err)
	}
	rows, err := decodeRows[domain.RoleAssignment](body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/user_roles", Err: fmt.Errorf("decode user_roles: %w", err)}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) ListRoles(ctx context.Context) ([]domain.RoleAssignment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRoles")
	defer span.End()

	body, err := c.doRequest(ctx, "user_roles?select=user_id,role")
	if err != nil {
		return nil, c.mapError("supabase/user_roles", err)
	}
	rows, err := decodeRows[domain.RoleAssignment](body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/user_roles", Err: fmt.Errorf("decode user_roles: %w", err)}
	}
	if rows == nil {
		rows = []domain.RoleAssignment{}
	}
	return rows, nil
}

func (c *Client) UpsertRole(ctx context.Context, userID string, role domain.Role) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertRole")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("role", string(role)))

	row := domain.RoleAssignment{UserID: userID, Role: role}
	if _, err := c.doUpsert(ctx, "user_roles", "user_id", row); err != nil {
		return c.mapError("supabase/user_roles", err)
	}
	return nil
}

func (c *Client) DeleteRole(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteRole")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := c.doDelete(ctx, "user_roles?user_id=eq."+url.QueryEscape(userID)); err != nil {
		return c.mapError("supabase/user_roles", err)
	}
	return nil
}
