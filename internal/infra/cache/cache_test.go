package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/cache"
	"github.com/boddenberg/customer-registry-bff/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ port.Cache[*domain.PostalAddress] = (*cache.InMemory[*domain.PostalAddress])(nil)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[*domain.PostalAddress](5 * time.Minute)
	defer c.Close()

	addr := &domain.PostalAddress{PostalCode: "01001-000", City: "São Paulo", StateCode: "SP"}
	c.Set("01001000", addr)

	got, ok := c.Get("01001000")
	require.True(t, ok)
	assert.Equal(t, addr, got)
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get("nonexistent")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](20 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get("key1")
	assert.False(t, ok, "expected cache entry to be expired")
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	assert.False(t, ok)
}

func TestCache_CloseTwice(t *testing.T) {
	c := cache.New[string](time.Minute)
	c.Close()
	assert.NotPanics(t, c.Close)
}
