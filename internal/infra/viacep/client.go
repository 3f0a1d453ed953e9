// Package viacep looks up Brazilian postal codes (CEP) on the ViaCEP web service.
package viacep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("viacep")

// flag decodes the "erro" marker, which ViaCEP has sent both as a bool and as a string.
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	*f = flag(s == "true")
	return nil
}

type response struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Complemento string `json:"complemento"`
	Bairro      string `json:"bairro"`
	Localidade  string `json:"localidade"`
	UF          string `json:"uf"`
	Erro        flag   `json:"erro"`
}

// Client implements port.PostalCodeLookup.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewClient creates a new ViaCEP client.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
	}
}

// IsSuccessful keeps "unknown code" answers from tripping the breaker.
func IsSuccessful(err error) bool {
	var nf *domain.ErrPostalCodeNotFound
	return err == nil || errors.As(err, &nf)
}

// Lookup fetches the address of an 8-digit postal code with retry, circuit breaker, and tracing.
func (c *Client) Lookup(ctx context.Context, postalCode string) (*domain.PostalAddress, error) {
	ctx, span := tracer.Start(ctx, "ViaCEP.Lookup")
	defer span.End()
	span.SetAttributes(attribute.String("postal_code", postalCode))

	result, err := c.cb.Execute(func() (any, error) {
		var addr *domain.PostalAddress
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, postalCode)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return resilience.Permanent(err)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			// ViaCEP answers 400 for malformed codes.
			if resp.StatusCode == http.StatusBadRequest {
				return resilience.Permanent(&domain.ErrPostalCodeNotFound{PostalCode: postalCode})
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("viacep returned status %d", resp.StatusCode)
			}

			var body response
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("decode viacep response: %w", err)
			}
			if body.Erro {
				return resilience.Permanent(&domain.ErrPostalCodeNotFound{PostalCode: postalCode})
			}

			addr = &domain.PostalAddress{
				PostalCode: body.CEP,
				Street:     body.Logradouro,
				Complement: body.Complemento,
				District:   body.Bairro,
				City:       body.Localidade,
				StateCode:  body.UF,
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return addr, nil
	})

	if err != nil {
		var nf *domain.ErrPostalCodeNotFound
		if errors.As(err, &nf) {
			return nil, nf
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrCircuitOpen{Service: "viacep"}
		}
		return nil, &domain.ErrExternalService{Service: "viacep", Err: err}
	}

	return result.(*domain.PostalAddress), nil
}
