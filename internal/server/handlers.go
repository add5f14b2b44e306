package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/document"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/orchestrator"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/requestctx"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/workflow"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes an optional JSON body. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if cat, err := s.orch.Catalog(r.Context()); err != nil {
		resp["status"] = "degraded"
		resp["actions_loaded"] = 0
		resp["catalog_error"] = err.Error()
	} else {
		resp["actions_loaded"] = cat.Len()
	}
	if n, err := s.orch.SessionCount(r.Context()); err == nil {
		resp["sessions"] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := requestctx.SetSessionID(r.Context(), req.SessionID)
	reply, err := s.orch.HandleMessage(ctx, req.SessionID, req.Message)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20) // room for multipart framing
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDomainError(w, r, document.ErrTooLarge)
			return
		}
		writeDomainError(w, r, orchestrator.ErrMissingUpload)
		return
	}
	defer r.MultipartForm.RemoveAll()
	if sessionID == "" {
		sessionID = r.FormValue("session_id")
	}

	file, header, err := r.FormFile("file")
	if err != nil || sessionID == "" {
		writeDomainError(w, r, orchestrator.ErrMissingUpload)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "reading upload: "+err.Error())
		return
	}
	if int64(len(content)) > s.maxUpload {
		writeDomainError(w, r, document.ErrTooLarge)
		return
	}

	ctx := requestctx.SetSessionID(r.Context(), sessionID)
	reply, err := s.orch.HandleDocument(ctx, sessionID, header.Filename, content)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	cat, err := s.orch.Catalog(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	categories := cat.ByCategory()
	if categories == nil {
		categories = map[string][]catalog.Action{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":      cat.Len(),
		"categories": categories,
	})
}

func (s *Server) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	list, err := s.orch.Sessions(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": list, "total": len(list)})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	ctx := requestctx.SetSessionID(r.Context(), id)
	rec, err := s.orch.Compile(ctx, id, req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleWorkflowsList(w http.ResponseWriter, r *http.Request) {
	status := workflow.Status(r.URL.Query().Get("status"))
	list, err := s.orch.Workflows(r.Context(), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workflows": list, "total": len(list)})
}

func (s *Server) handleWorkflowGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.orch.Workflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type reviewRequest struct {
	ReviewedBy string `json:"reviewed_by"`
	Reason     string `json:"reason"`
}

// reviewer defaults to the authenticated caller.
func (req reviewRequest) reviewer(r *http.Request) string {
	if by := strings.TrimSpace(req.ReviewedBy); by != "" {
		return by
	}
	return requestctx.CallerID(r.Context())
}

func (s *Server) handleWorkflowApprove(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := s.orch.Approve(r.Context(), chi.URLParam(r, "id"), req.reviewer(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWorkflowReject(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := s.orch.Reject(r.Context(), chi.URLParam(r, "id"), req.reviewer(r), req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWorkflowSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.orch.Submit(r.Context(), id)
	if err != nil {
		log.Warn().Err(err).Str("workflow_id", id).Msg("workflow_submit_rejected")
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
