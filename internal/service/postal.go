package service

import (
	"context"
	"errors"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"
	"github.com/boddenberg/customer-registry-bff/internal/port"
	"github.com/boddenberg/customer-registry-bff/internal/validation"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var postalTracer = otel.Tracer("service/postal")

const postalCache = "postal"

// PostalService resolves postal codes into addresses, caching hits.
type PostalService struct {
	lookup  port.PostalCodeLookup
	cache   port.Cache[*domain.PostalAddress]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewPostalService creates a new postal-code service.
func NewPostalService(lookup port.PostalCodeLookup, c port.Cache[*domain.PostalAddress], metrics *observability.Metrics, logger *zap.Logger) *PostalService {
	return &PostalService{lookup: lookup, cache: c, metrics: metrics, logger: logger}
}

// Lookup accepts the code with or without punctuation.
// Unknown codes return *domain.ErrPostalCodeNotFound; lookup outages return a transient error.
func (s *PostalService) Lookup(ctx context.Context, raw string) (*domain.PostalAddress, error) {
	ctx, span := postalTracer.Start(ctx, "PostalService.Lookup")
	defer span.End()

	digits, err := validation.PostalCodeDigits(raw)
	if err != nil {
		return nil, err
	}

	if addr, ok := s.cache.Get(digits); ok {
		s.metrics.IncrCacheHit(postalCache)
		return addr, nil
	}
	s.metrics.IncrCacheMiss(postalCache)

	addr, err := s.lookup.Lookup(ctx, digits)
	if err != nil {
		var nf *domain.ErrPostalCodeNotFound
		if errors.As(err, &nf) {
			return nil, err
		}
		s.metrics.IncrExternalError("viacep")
		s.logger.Warn("postal code lookup failed", zap.String("cep", digits), zap.Error(err))
		return nil, transient("viacep", err)
	}

	s.cache.Set(digits, addr)
	return addr, nil
}
