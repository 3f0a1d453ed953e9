package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

func (s *Store) InsertProfile(ctx context.Context, p *domain.Profile) error {
	ctx, span := tracer.Start(ctx, "Postgres.InsertProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", p.ID))

	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, email, nome) VALUES ($1, $2, $3)`,
		p.ID, p.Email, p.DisplayName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrAlreadyExists{Message: "Perfil já existe"}
		}
		return storeError("postgres/profiles", fmt.Errorf("inserting profile: %w", err))
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProfile")
	defer span.End()

	var p domain.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, email, nome, created_at FROM profiles WHERE id::text = $1`, id,
	).Scan(&p.ID, &p.Email, &p.DisplayName, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("postgres/profiles", fmt.Errorf("querying profile: %w", err))
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListProfiles")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, email, nome, created_at FROM profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, storeError("postgres/profiles", fmt.Errorf("listing profiles: %w", err))
	}
	defer rows.Close()

	profiles := []domain.Profile{}
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.DisplayName, &p.CreatedAt); err != nil {
			return nil, storeError("postgres/profiles", fmt.Errorf("scanning profile row: %w", err))
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("postgres/profiles", fmt.Errorf("iterating profile rows: %w", err))
	}
	return profiles, nil
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteProfile")
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id::text = $1`, id); err != nil {
		return storeError("postgres/profiles", fmt.Errorf("deleting profile: %w", err))
	}
	return nil
}

// --- user_roles ---

func (s *Store) GetRole(ctx context.Context, userID string) (*domain.RoleAssignment, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetRole")
	defer span.End()

	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT role FROM user_roles WHERE user_id::text = $1`, userID,
	).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("postgres/user_roles", fmt.Errorf("querying role: %w", err))
	}
	return &domain.RoleAssignment{UserID: userID, Role: domain.Role(role)}, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]domain.RoleAssignment, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListRoles")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT user_id::text, role FROM user_roles`)
	if err != nil {
		return nil, storeError("postgres/user_roles", fmt.Errorf("listing roles: %w", err))
	}
	defer rows.Close()

	roles := []domain.RoleAssignment{}
	for rows.Next() {
		var userID, role string
		if err := rows.Scan(&userID, &role); err != nil {
			return nil, storeError("postgres/user_roles", fmt.Errorf("scanning role row: %w", err))
		}
		roles = append(roles, domain.RoleAssignment{UserID: userID, Role: domain.Role(role)})
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("postgres/user_roles", fmt.Errorf("iterating role rows: %w", err))
	}
	return roles, nil
}

func (s *Store) UpsertRole(ctx context.Context, userID string, role domain.Role) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpsertRole")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("role", string(role)))

	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES ($1::uuid, $2)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`,
		userID, string(role),
	)
	if err != nil {
		return storeError("postgres/user_roles", fmt.Errorf("upserting role: %w", err))
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteRole")
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id::text = $1`, userID); err != nil {
		return storeError("postgres/user_roles", fmt.Errorf("deleting role: %w", err))
	}
	return nil
}
