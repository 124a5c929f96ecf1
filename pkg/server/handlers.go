package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/budget"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/routing"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/telemetry/health"
)

// TenantHeader supplies the tenant when the body omits tenant_id.
const TenantHeader = "X-Tenant-ID"

func healthVersion(d Deps) http.HandlerFunc {
	return health.VersionHandler(d.Version, d.Commit, d.BuildTime)
}

// handleRoute handles POST /v1/route.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req routing.AIRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errorDetail{
				Type:    errorTypeInvalidRequest,
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		writeError(w, http.StatusBadRequest, errorDetail{
			Type:    errorTypeInvalidRequest,
			Message: "invalid JSON body: " + err.Error(),
		})
		return
	}
	if req.TenantID == "" {
		req.TenantID = r.Header.Get(TenantHeader)
	}

	resp, err := s.deps.Engine.Route(r.Context(), &req)
	if err != nil {
		writeRouteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleProviders handles GET /v1/providers.
func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.deps.Engine.ProviderStatus()})
}

func (s *Server) handleActive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"active": s.deps.Engine.ActiveRequests()})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Engine.Stats().Snapshot())
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"alerts": s.deps.Guardrails.Alerts()})
}

// handleTenantUsage handles GET /v1/tenants/{tenant}/usage.
func (s *Server) handleTenantUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Guardrails.Usage(chi.URLParam(r, "tenant")))
}

// handleTenantHistory handles GET /v1/tenants/{tenant}/history with the
// optional query parameters provider, since (RFC 3339) and limit.
func (s *Server) handleTenantHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := budget.HistoryFilter{
		Tenant:   chi.URLParam(r, "tenant"),
		Provider: q.Get("provider"),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errorDetail{
				Type:    errorTypeInvalidRequest,
				Message: "since must be an RFC 3339 timestamp",
			})
			return
		}
		f.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errorDetail{
				Type:    errorTypeInvalidRequest,
				Message: "limit must be a non-negative integer",
			})
			return
		}
		f.Limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": s.deps.Guardrails.History(f)})
}
