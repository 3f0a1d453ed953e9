package handler

import (
	"net/http"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Customers: /v1/customers
// ============================================================

func listCustomersHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers")
		defer span.End()

		list, err := customers.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func createCustomerHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/customers")
		defer span.End()

		var in domain.CustomerInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		c, err := customers.Create(ctx, callerFrom(r).UserID, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func getCustomerHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{id}")
		defer span.End()

		c, err := customers.Get(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func updateCustomerHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/customers/{id}")
		defer span.End()

		var patch domain.CustomerPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		c, err := customers.Update(ctx, chi.URLParam(r, "id"), &patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func deleteCustomerHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/customers/{id}")
		defer span.End()

		if err := customers.Delete(ctx, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
