// Package postgres implements the profile, role and customer stores directly
// on a Postgres database with the same schema as the hosted project.
//
// On the project's own database profiles and user_roles reference auth.users
// with ON DELETE CASCADE. On a database without the auth schema there is no
// accounts table to reference, and the rows go away only through user removal.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("postgres")

// Schema creates the tables used by the service. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id         uuid PRIMARY KEY,
	email      text NOT NULL,
	nome       text NOT NULL DEFAULT '',
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_roles (
	id      uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id uuid NOT NULL UNIQUE,
	role    text NOT NULL DEFAULT 'operator' CHECK (role IN ('admin', 'operator'))
);

CREATE TABLE IF NOT EXISTS customers (
	id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	nome_completo text NOT NULL,
	cep           text NOT NULL,
	endereco      jsonb NOT NULL,
	telefone      text NOT NULL,
	whatsapp      text,
	cidade        text NOT NULL,
	uf            text NOT NULL,
	observacoes   text,
	created_at    timestamptz NOT NULL DEFAULT now(),
	created_by    uuid
);

CREATE INDEX IF NOT EXISTS customers_created_at_idx ON customers (created_at DESC);

DO $$
BEGIN
	IF to_regclass('auth.users') IS NULL THEN
		RETURN;
	END IF;
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'profiles_id_fkey') THEN
		ALTER TABLE profiles
			ADD CONSTRAINT profiles_id_fkey FOREIGN KEY (id) REFERENCES auth.users (id) ON DELETE CASCADE;
	END IF;
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'user_roles_user_id_fkey') THEN
		ALTER TABLE user_roles
			ADD CONSTRAINT user_roles_user_id_fkey FOREIGN KEY (user_id) REFERENCES auth.users (id) ON DELETE CASCADE;
	END IF;
END
$$;
`

// Store implements port.ProfileStore, port.RoleStore and port.CustomerStore.
type Store struct {
	pool *pgxpool.Pool
}

// Connect parses databaseURL, opens a pool and pings it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// New creates a Store backed by the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema applies Schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// storeError maps a failed statement onto a domain error. Data exceptions
// (class 22) and integrity violations (class 23) are rejections of the row;
// everything else is a transient store failure.
func storeError(service string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return &domain.ErrAlreadyExists{Message: "Registro já existe"}
		case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"):
			return &domain.ErrValidation{Message: pgErr.Message}
		}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
