package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

const (
	msgInvalidBody  = "Corpo da requisição inválido"
	msgInvalidData  = "Dados inválidos"
	msgUnavailable  = "Serviço temporariamente indisponível. Tente novamente."
	msgAdminOnly    = "Acesso restrito a administradores"
	msgNoToken      = "Token de autenticação não fornecido"
	msgInternal     = "Erro interno do servidor"
	maxRequestBytes = 1 << 20
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a JSON body into dst, rejecting unknown trailing data.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// classified is the HTTP rendition of a service error.
type classified struct {
	status int
	body   errorResponse
}

// classify maps domain errors to a status and a user-facing body.
// ok is false for errors that carry no domain meaning.
func classify(err error) (classified, bool) {
	var (
		validationSet *domain.ErrValidationSet
		validation    *domain.ErrValidation
		exists        *domain.ErrAlreadyExists
		identity      *domain.ErrIdentity
		notFound      *domain.ErrNotFound
		postal        *domain.ErrPostalCodeNotFound
		forbidden     *domain.ErrForbidden
		unauthorized  *domain.ErrUnauthorized
		circuitOpen   *domain.ErrCircuitOpen
		external      *domain.ErrExternalService
	)

	switch {
	case errors.As(err, &validationSet):
		return classified{http.StatusBadRequest, errorResponse{Error: msgInvalidData, Fields: validationSet.Fields}}, true
	case errors.As(err, &validation):
		return classified{http.StatusBadRequest, errorResponse{Error: validation.Message}}, true
	case errors.As(err, &exists):
		return classified{http.StatusConflict, errorResponse{Error: exists.Message}}, true
	case errors.As(err, &identity):
		return classified{http.StatusBadRequest, errorResponse{Error: identity.Message}}, true
	case errors.As(err, &postal):
		return classified{http.StatusNotFound, errorResponse{Error: "CEP não encontrado"}}, true
	case errors.As(err, &notFound):
		return classified{http.StatusNotFound, errorResponse{Error: "Registro não encontrado"}}, true
	case errors.As(err, &forbidden):
		return classified{http.StatusForbidden, errorResponse{Error: msgAdminOnly}}, true
	case errors.As(err, &unauthorized):
		return classified{http.StatusUnauthorized, errorResponse{Error: unauthorized.Error()}}, true
	case errors.As(err, &circuitOpen), errors.As(err, &external):
		return classified{http.StatusServiceUnavailable, errorResponse{Error: msgUnavailable}}, true
	}
	return classified{}, false
}

// handleServiceError maps domain errors to HTTP responses on the /v1 API.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	renderError(w, err, logger, apiStatus)
}

// handleFunctionError renders errors of the admin-create-user and
// admin-delete-user endpoints: client-side failures are 400, the rest 500.
func handleFunctionError(w http.ResponseWriter, err error, logger *zap.Logger) {
	renderError(w, err, logger, functionStatus)
}

func renderError(w http.ResponseWriter, err error, logger *zap.Logger, policy statusPolicy) {
	c, ok := classify(err)
	if !ok {
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	logClassified(logger, c.status, err)
	writeJSON(w, policy(c.status), c.body)
}

func logClassified(logger *zap.Logger, status int, err error) {
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("service unavailable", zap.Error(err))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		logger.Warn("access denied", zap.Error(err))
	default:
		logger.Debug("request rejected", zap.Int("status", status), zap.String("error", err.Error()))
	}
}
