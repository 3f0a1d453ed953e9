package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/cache"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPostalService(t *testing.T, lookup *fakeLookup) *service.PostalService {
	t.Helper()
	c := cache.New[*domain.PostalAddress](time.Minute)
	t.Cleanup(c.Close)
	return service.NewPostalService(lookup, c, observability.NewMetrics(), zap.NewNop())
}

func TestPostalLookup_CachesByDigits(t *testing.T) {
	lookup := &fakeLookup{addr: &domain.PostalAddress{PostalCode: "01310-100", Street: "Avenida Paulista", City: "São Paulo", StateCode: "SP"}}
	svc := newPostalService(t, lookup)

	first, err := svc.Lookup(context.Background(), "01310-100")
	require.NoError(t, err)
	second, err := svc.Lookup(context.Background(), "01310100")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, lookup.calls)
}

func TestPostalLookup_NotFoundIsNotCached(t *testing.T) {
	lookup := &fakeLookup{err: &domain.ErrPostalCodeNotFound{PostalCode: "99999999"}}
	svc := newPostalService(t, lookup)

	for i := 0; i < 2; i++ {
		_, err := svc.Lookup(context.Background(), "99999-999")
		var nf *domain.ErrPostalCodeNotFound
		require.ErrorAs(t, err, &nf)
	}
	assert.Equal(t, 2, lookup.calls)
}

func TestPostalLookup_InvalidCode(t *testing.T) {
	lookup := &fakeLookup{}
	_, err := newPostalService(t, lookup).Lookup(context.Background(), "123")

	var v *domain.ErrValidation
	require.ErrorAs(t, err, &v)
	assert.Zero(t, lookup.calls)
}

func TestPostalLookup_Outage(t *testing.T) {
	lookup := &fakeLookup{err: errStoreDown}
	_, err := newPostalService(t, lookup).Lookup(context.Background(), "01310100")

	var ext *domain.ErrExternalService
	assert.ErrorAs(t, err, &ext)
}
