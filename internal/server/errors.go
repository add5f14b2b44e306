package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/document"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/executor"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/orchestrator"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/session"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/workflow"
)

// writeDomainError maps orchestrator errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *orchestrator.PolicyDeniedError
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing session_id or message")
	case errors.Is(err, orchestrator.ErrMissingUpload):
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing file or session_id")
	case errors.Is(err, orchestrator.ErrOracleNotConfigured):
		writeError(w, http.StatusInternalServerError, "configuration_error", "AI assistant not configured")
	case errors.Is(err, catalog.ErrCatalogUnavailable), errors.Is(err, catalog.ErrCatalogEmpty):
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", "Backend actions unavailable")
	case errors.Is(err, orchestrator.ErrGeneration):
		writeError(w, http.StatusInternalServerError, "processing_failed", orchestrator.FailureReply)
	case errors.Is(err, document.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
	case errors.Is(err, document.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", err.Error())
	case errors.Is(err, document.ErrEmpty):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, workflow.ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "not_found", "workflow not found")
	case errors.Is(err, workflow.ErrNotPending):
		writeError(w, http.StatusConflict, "conflict", "workflow is not pending")
	case errors.Is(err, orchestrator.ErrNotApproved):
		writeError(w, http.StatusConflict, "conflict", "workflow is not approved")
	case errors.Is(err, orchestrator.ErrNoActions):
		writeError(w, http.StatusUnprocessableEntity, "no_actions", "session has no detected actions")
	case errors.As(err, &denied):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   "policy_denied",
			"message": "workflow denied by policy",
			"reasons": denied.Reasons,
		})
	case errors.Is(err, orchestrator.ErrStoreNotConfigured), errors.Is(err, executor.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "disabled", err.Error())
	case errors.Is(err, executor.ErrRejected):
		writeError(w, http.StatusBadGateway, "executor_rejected", err.Error())
	case errors.Is(err, executor.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "executor_unavailable", err.Error())
	default:
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request_failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
