package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"
	"github.com/boddenberg/customer-registry-bff/internal/port"
	"github.com/boddenberg/customer-registry-bff/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var customerTracer = otel.Tracer("service/customers")

// CustomerService validates and stores customer records.
type CustomerService struct {
	store   port.CustomerStore
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewCustomerService creates a customer service over the configured store.
func NewCustomerService(store port.CustomerStore, metrics *observability.Metrics, logger *zap.Logger) *CustomerService {
	return &CustomerService{store: store, metrics: metrics, logger: logger, now: time.Now}
}

func normalizeInput(in *domain.CustomerInput) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Address.Street = strings.TrimSpace(in.Address.Street)
	in.Address.Number = strings.TrimSpace(in.Address.Number)
	in.Address.Complement = strings.TrimSpace(in.Address.Complement)
	in.Address.District = strings.TrimSpace(in.Address.District)
	in.Phone = strings.TrimSpace(in.Phone)
	in.WhatsApp = strings.TrimSpace(in.WhatsApp)
	in.City = strings.TrimSpace(in.City)
	in.StateCode = strings.ToUpper(strings.TrimSpace(in.StateCode))
	in.Notes = strings.TrimSpace(in.Notes)
}

// Create validates input and stores a new record owned by userID.
func (s *CustomerService) Create(ctx context.Context, userID string, in *domain.CustomerInput) (*domain.Customer, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.Create")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("customer_create", time.Since(start))
	}()

	normalizeInput(in)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	c := &domain.Customer{
		ID:           uuid.New().String(),
		FullName:     in.FullName,
		PostalCode:   in.PostalCode,
		Address:      in.Address,
		Phone:        in.Phone,
		WhatsApp:     in.WhatsApp,
		City:         in.City,
		StateCode:    in.StateCode,
		Notes:        in.Notes,
		RegisteredAt: s.now().UTC(),
		CreatedBy:    userID,
	}
	span.SetAttributes(attribute.String("customer.id", c.ID))

	created, err := s.store.CreateCustomer(ctx, c)
	if err != nil {
		s.metrics.IncrExternalError("customers")
		s.logger.Error("create customer failed", zap.String("customer_id", c.ID), zap.Error(err))
		return nil, transient("customers", err)
	}

	s.logger.Info("customer created", zap.String("customer_id", created.ID), zap.String("by", userID))
	return created, nil
}

// List returns all visible records, newest first.
func (s *CustomerService) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.List")
	defer span.End()

	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		s.metrics.IncrExternalError("customers")
		return nil, transient("customers", err)
	}
	if customers == nil {
		customers = []domain.Customer{}
	}
	return customers, nil
}

func (s *CustomerService) Get(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.Get")
	defer span.End()

	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, transient("customers", err)
	}
	return c, nil
}

// Update applies a partial update. Empty values for required fields are ignored;
// empty whatsapp or observacoes clear the stored value.
func (s *CustomerService) Update(ctx context.Context, id string, patch *domain.CustomerPatch) (*domain.Customer, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	normalizePatch(patch)
	if patch.IsEmpty() {
		return nil, &domain.ErrValidation{Field: "body", Message: "nenhum campo para atualizar"}
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateCustomer(ctx, id, patch)
	if err != nil {
		return nil, transient("customers", err)
	}
	s.logger.Info("customer updated", zap.String("customer_id", id))
	return updated, nil
}

func (s *CustomerService) Delete(ctx context.Context, id string) error {
	ctx, span := customerTracer.Start(ctx, "CustomerService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		s.metrics.IncrExternalError("customers")
		return transient("customers", err)
	}
	s.logger.Info("customer deleted", zap.String("customer_id", id))
	return nil
}

// normalizePatch trims values and drops empty required fields.
func normalizePatch(p *domain.CustomerPatch) {
	required := func(v **string) {
		if *v == nil {
			return
		}
		s := strings.TrimSpace(**v)
		if s == "" {
			*v = nil
			return
		}
		*v = &s
	}
	optional := func(v **string) {
		if *v != nil {
			s := strings.TrimSpace(**v)
			*v = &s
		}
	}

	required(&p.FullName)
	required(&p.PostalCode)
	required(&p.Phone)
	required(&p.City)
	required(&p.StateCode)
	if p.StateCode != nil {
		up := strings.ToUpper(*p.StateCode)
		p.StateCode = &up
	}
	optional(&p.WhatsApp)
	optional(&p.Notes)
	if p.Address != nil {
		a := *p.Address
		a.Street = strings.TrimSpace(a.Street)
		a.Number = strings.TrimSpace(a.Number)
		a.Complement = strings.TrimSpace(a.Complement)
		a.District = strings.TrimSpace(a.District)
		p.Address = &a
	}
}
