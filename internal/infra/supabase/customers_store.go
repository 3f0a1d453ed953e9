package supabase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// CustomerStore implementation: customers table
// ============================================================

type customerRow struct {
	ID           string         `json:"id"`
	NomeCompleto string         `json:"nome_completo"`
	Cep          string         `json:"cep"`
	Endereco     domain.Address `json:"endereco"`
	Telefone     string         `json:"telefone"`
	Whatsapp     *string        `json:"whatsapp"`
	Cidade       string         `json:"cidade"`
	UF           string         `json:"uf"`
	Observacoes  *string        `json:"observacoes"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	CreatedBy    *string        `json:"created_by,omitempty"`
}

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

func customerToRow(cu *domain.Customer) customerRow {
	row := customerRow{
		ID:           cu.ID,
		NomeCompleto: cu.FullName,
		Cep:          cu.PostalCode,
		Endereco:     cu.Address,
		Telefone:     cu.Phone,
		Whatsapp:     nullable(cu.WhatsApp),
		Cidade:       cu.City,
		UF:           cu.StateCode,
		Observacoes:  nullable(cu.Notes),
		CreatedBy:    nullable(cu.CreatedBy),
	}
	if !cu.RegisteredAt.IsZero() {
		t := cu.RegisteredAt.UTC()
		row.CreatedAt = &t
	}
	return row
}

func (r customerRow) toDomain() domain.Customer {
	cu := domain.Customer{
		ID:         r.ID,
		FullName:   r.NomeCompleto,
		PostalCode: r.Cep,
		Address:    r.Endereco,
		Phone:      r.Telefone,
		WhatsApp:   deref(r.Whatsapp),
		City:       r.Cidade,
		StateCode:  r.UF,
		Notes:      deref(r.Observacoes),
		CreatedBy:  deref(r.CreatedBy),
	}
	if r.CreatedAt != nil {
		cu.RegisteredAt = *r.CreatedAt
	}
	return cu
}

// patchColumns builds the PATCH body. Empty optional fields are written as null.
func patchColumns(p *domain.CustomerPatch) map[string]any {
	cols := map[string]any{}
	if p.FullName != nil {
		cols["nome_completo"] = *p.FullName
	}
	if p.PostalCode != nil {
		cols["cep"] = *p.PostalCode
	}
	if p.Address != nil {
		cols["endereco"] = *p.Address
	}
	if p.Phone != nil {
		cols["telefone"] = *p.Phone
	}
	if p.WhatsApp != nil {
		cols["whatsapp"] = nullable(*p.WhatsApp)
	}
	if p.City != nil {
		cols["cidade"] = *p.City
	}
	if p.StateCode != nil {
		cols["uf"] = *p.StateCode
	}
	if p.Notes != nil {
		cols["observacoes"] = nullable(*p.Notes)
	}
	return cols
}

func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCustomers")
	defer span.End()

	body, err := c.doRequest(ctx, "customers?select=*&order=created_at.desc")
	if err != nil {
		return nil, c.mapError("supabase/customers", err)
	}
	rows, err := decodeRows[customerRow](body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: fmt.Errorf("decode customers: %w", err)}
	}

	customers := make([]domain.Customer, 0, len(rows))
	for _, r := range rows {
		customers = append(customers, r.toDomain())
	}
	span.SetAttributes(attribute.Int("customers.count", len(customers)))
	return customers, nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	body, err := c.doRequest(ctx, fmt.Sprintf("customers?id=eq.%s&limit=1", url.QueryEscape(id)))
	if err != nil {
		return nil, c.mapError("supabase/customers", err)
	}
	rows, err := decodeRows[customerRow](body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: fmt.Errorf("decode customers: %w", err)}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	cu := rows[0].toDomain()
	return &cu, nil
}

func (c *Client) CreateCustomer(ctx context.Context, cu *domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCustomer")
	defer span.End()

	row := customerToRow(cu)
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	span.SetAttributes(attribute.String("customer.id", row.ID))

	body, err := c.doPost(ctx, "customers", row)
	if err != nil {
		return nil, c.mapError("supabase/customers", err)
	}
	rows, err := decodeRows[customerRow](body)
	if err != nil || len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: fmt.Errorf("decode created customer: %v", err)}
	}
	created := rows[0].toDomain()
	return &created, nil
}

func (c *Client) UpdateCustomer(ctx context.Context, id string, patch *domain.CustomerPatch) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	body, err := c.doPatch(ctx, "customers?id=eq."+url.QueryEscape(id), patchColumns(patch))
	if err != nil {
		return nil, c.mapError("supabase/customers", err)
	}
	rows, err := decodeRows[customerRow](body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: fmt.Errorf("decode updated customer: %w", err)}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	updated := rows[0].toDomain()
	return &updated, nil
}

func (c *Client) DeleteCustomer(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	if err := c.doDelete(ctx, "customers?id=eq."+url.QueryEscape(id)); err != nil {
		return c.mapError("supabase/customers", err)
	}
	return nil
}
