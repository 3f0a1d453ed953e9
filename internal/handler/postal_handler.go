package handler

import (
	"net/http"

	"github.com/boddenberg/customer-registry-bff/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func postalLookupHandler(postal *service.PostalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/postal-codes/{cep}")
		defer span.End()

		addr, err := postal.Lookup(ctx, chi.URLParam(r, "cep"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, addr)
	}
}
