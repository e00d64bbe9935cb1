package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/audit"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/store"
)

// scanRequest is the start-or-resume payload. AuditID switches the call
// into resume mode.
type scanRequest struct {
	audit.Request

	AuditID string `json:"audit_id,omitempty"`
	PlaceID string `json:"place_id,omitempty"`
	Skip    bool   `json:"skip_selection,omitempty"`
}

type scanResponse struct {
	Status     string            `json:"status"`
	AuditID    string            `json:"audit_id,omitempty"`
	Candidates []model.Candidate `json:"candidates,omitempty"`
	Total      int               `json:"total,omitempty"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	AuditID string `json:"audit_id,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status: "error", Message: "invalid request body",
		})
		return
	}

	var run *model.AuditRun
	var err error
	if req.AuditID != "" {
		run, err = s.service.Resume(r.Context(), req.AuditID, req.PlaceID, req.Skip)
	} else {
		req.Meta = model.RequestMeta{IP: clientIP(r), UserAgent: r.UserAgent()}
		run, err = s.service.Start(r.Context(), req.Request)
	}
	if err != nil {
		auditID := req.AuditID
		if run != nil {
			auditID = run.ID
		}
		s.writeError(w, err, auditID)
		return
	}

	switch run.Status {
	case model.StatusSelectionRequired:
		writeJSON(w, http.StatusOK, scanResponse{
			Status:     "selection_required",
			AuditID:    run.ID,
			Candidates: run.Candidates,
			Total:      len(run.Candidates),
		})
	default:
		writeJSON(w, http.StatusAccepted, scanResponse{Status: "queued", AuditID: run.ID})
	}
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	// The full scan payload only accompanies successful runs.
	if run.Status != model.StatusSuccess {
		run.Result = nil
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		OwnerID: q.Get("owner_id"),
		Status:  model.RunStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	runs, err := s.service.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	if runs == nil {
		runs = []model.AuditRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": runs, "total": len(runs)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps pipeline errors onto HTTP statuses with a stable code.
func (s *Server) writeError(w http.ResponseWriter, err error, auditID string) {
	if errors.Is(err, audit.ErrRunNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Status: "error", Message: "audit not found", AuditID: auditID,
		})
		return
	}
	if errors.Is(err, audit.ErrNotResumable) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Status: "error", Message: "audit is not awaiting selection", AuditID: auditID,
		})
		return
	}

	var runErr *model.RunError
	if errors.As(err, &runErr) {
		writeJSON(w, statusForCode(runErr.Code), errorResponse{
			Status: "error", Code: runErr.Code, Message: runErr.Message, AuditID: auditID,
		})
		return
	}

	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Status: "error", Message: "internal error", AuditID: auditID,
	})
}

// clientIP strips the port from RemoteAddr. The RealIP middleware has
// already resolved forwarding headers by the time handlers run.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func statusForCode(code string) int {
	switch code {
	case model.CodeInvalidDomain, model.CodeInvalidIdentification, model.CodeAmbiguousBusiness:
		return http.StatusUnprocessableEntity
	case model.CodePlanAuditLimitReached, model.CodePlanConcurrentLimit:
		return http.StatusTooManyRequests
	case model.CodePlacesSearchFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
