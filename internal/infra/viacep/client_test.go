package viacep_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/resilience"
	"github.com/boddenberg/customer-registry-bff/internal/infra/viacep"
)

func newClient(t *testing.T, h http.HandlerFunc) *viacep.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return viacep.NewClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("viacep-test", viacep.IsSuccessful), cfg)
}

func TestLookup_Success(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/01001000/json/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cep":"01001-000","logradouro":"Praça da Sé","complemento":"lado ímpar","bairro":"Sé","localidade":"São Paulo","uf":"SP","ibge":"3550308"}`))
	})

	addr, err := client.Lookup(context.Background(), "01001000")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if addr.Street != "Praça da Sé" || addr.City != "São Paulo" || addr.StateCode != "SP" {
		t.Errorf("unexpected address: %+v", addr)
	}
}

func TestLookup_NotFound(t *testing.T) {
	for _, body := range []string{`{"erro": true}`, `{"erro": "true"}`} {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		_, err := client.Lookup(context.Background(), "99999999")
		if _, ok := err.(*domain.ErrPostalCodeNotFound); !ok {
			t.Fatalf("body %s: expected ErrPostalCodeNotFound, got %T (%v)", body, err, err)
		}
	}
}

func TestLookup_TransportFailureIsNotNotFound(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Lookup(context.Background(), "01001000")
	if _, ok := err.(*domain.ErrExternalService); !ok {
		t.Fatalf("expected ErrExternalService, got %T (%v)", err, err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestLookup_NotFoundDoesNotTripBreaker(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"erro": true}`))
	})

	for i := 0; i < 10; i++ {
		_, err := client.Lookup(context.Background(), "99999999")
		if _, ok := err.(*domain.ErrPostalCodeNotFound); !ok {
			t.Fatalf("attempt %d: expected ErrPostalCodeNotFound, got %T", i, err)
		}
	}
}
