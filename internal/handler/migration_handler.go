package handler

import (
	"net/http"

	"github.com/boddenberg/customer-registry-bff/internal/port"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"go.uber.org/zap"
)

// migrateLocalHandler copies the local file store into the configured store
// on behalf of the caller. Running it again after a partial failure only
// copies what is still missing.
func migrateLocalHandler(migrator *service.Migrator, source port.CustomerSource, target port.CustomerStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/migrations/local")
		defer span.End()

		if source == nil {
			writeError(w, http.StatusNotFound, "Nenhum armazenamento local configurado")
			return
		}

		report, err := migrator.Migrate(ctx, callerFrom(r).UserID, source, target)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
