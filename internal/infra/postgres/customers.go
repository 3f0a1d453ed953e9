package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

const customerColumns = `id::text, nome_completo, cep, endereco, telefone, whatsapp,
	cidade, uf, observacoes, created_at, created_by::text`

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var (
		c                              domain.Customer
		endereco                       []byte
		whatsapp, observacoes, creator *string
	)
	err := row.Scan(&c.ID, &c.FullName, &c.PostalCode, &endereco, &c.Phone, &whatsapp,
		&c.City, &c.StateCode, &observacoes, &c.RegisteredAt, &creator)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(endereco, &c.Address); err != nil {
		return nil, fmt.Errorf("decoding endereco: %w", err)
	}
	c.WhatsApp = deref(whatsapp)
	c.Notes = deref(observacoes)
	c.CreatedBy = deref(creator)
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListCustomers")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, storeError("postgres/customers", fmt.Errorf("listing customers: %w", err))
	}
	defer rows.Close()

	customers := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, storeError("postgres/customers", fmt.Errorf("scanning customer row: %w", err))
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("postgres/customers", fmt.Errorf("iterating customer rows: %w", err))
	}
	span.SetAttributes(attribute.Int("customers.count", len(customers)))
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetCustomer")
	defer span.End()

	c, err := scanCustomer(s.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	if err != nil {
		return nil, storeError("postgres/customers", fmt.Errorf("querying customer: %w", err))
	}
	return c, nil
}

// CreateCustomer inserts c. A zero RegisteredAt takes the database default.
func (s *Store) CreateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateCustomer")
	defer span.End()

	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}
	span.SetAttributes(attribute.String("customer.id", id))

	endereco, err := json.Marshal(c.Address)
	if err != nil {
		return nil, fmt.Errorf("encoding endereco: %w", err)
	}

	var createdAt *time.Time
	if !c.RegisteredAt.IsZero() {
		createdAt = &c.RegisteredAt
	}

	created, err := scanCustomer(s.pool.QueryRow(ctx, `
		INSERT INTO customers (id, nome_completo, cep, endereco, telefone, whatsapp,
			cidade, uf, observacoes, created_at, created_by)
		VALUES ($1::uuid, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, COALESCE($10, now()), $11::uuid)
		RETURNING `+customerColumns,
		id, c.FullName, c.PostalCode, string(endereco), c.Phone, nullable(c.WhatsApp),
		c.City, c.StateCode, nullable(c.Notes), createdAt, nullable(c.CreatedBy),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &domain.ErrAlreadyExists{Message: "Cliente já cadastrado"}
		}
		return nil, storeError("postgres/customers", fmt.Errorf("inserting customer: %w", err))
	}
	return created, nil
}

// UpdateCustomer writes only the columns set in patch.
func (s *Store) UpdateCustomer(ctx context.Context, id string, patch *domain.CustomerPatch) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	var setClauses []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FullName != nil {
		set("nome_completo", *patch.FullName)
	}
	if patch.PostalCode != nil {
		set("cep", *patch.PostalCode)
	}
	if patch.Address != nil {
		endereco, err := json.Marshal(patch.Address)
		if err != nil {
			return nil, fmt.Errorf("encoding endereco: %w", err)
		}
		args = append(args, string(endereco))
		setClauses = append(setClauses, fmt.Sprintf("endereco = $%d::jsonb", len(args)))
	}
	if patch.Phone != nil {
		set("telefone", *patch.Phone)
	}
	if patch.WhatsApp != nil {
		set("whatsapp", nullable(*patch.WhatsApp))
	}
	if patch.City != nil {
		set("cidade", *patch.City)
	}
	if patch.StateCode != nil {
		set("uf", *patch.StateCode)
	}
	if patch.Notes != nil {
		set("observacoes", nullable(*patch.Notes))
	}

	if len(setClauses) == 0 {
		return s.GetCustomer(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE customers SET %s WHERE id::text = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args), customerColumns)

	updated, err := scanCustomer(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	if err != nil {
		return nil, storeError("postgres/customers", fmt.Errorf("updating customer: %w", err))
	}
	return updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteCustomer")
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE id::text = $1`, id); err != nil {
		return storeError("postgres/customers", fmt.Errorf("deleting customer: %w", err))
	}
	return nil
}
