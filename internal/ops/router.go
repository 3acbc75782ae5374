// Package ops exposes the core runtime services over HTTP: health,
// registry introspection, and policy CRUD, following the same chi
// construction style as the rest of the codebase's HTTP surface.
package ops

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/capacity"
	"github.com/aristath/sentinel/internal/resilience"
	"github.com/aristath/sentinel/internal/tenancy"
	"github.com/aristath/sentinel/internal/tradepipeline"
)

// policyRequest is the wire shape accepted by POST /policies.
type policyRequest struct {
	WorkspaceID  string               `json:"workspace_id"`
	ResourceType string               `json:"resource_type"`
	Role         tenancy.Role         `json:"role"`
	AccessLevel  tenancy.AccessLevel  `json:"access_level"`
	Action       tenancy.PolicyAction `json:"action"`
	Priority     int                  `json:"priority"`
	Conditions   map[string]any       `json:"conditions"`
	Enabled      bool                 `json:"enabled"`
	Description  string               `json:"description"`
}

// Dependencies bundles the collaborators the ops router introspects. Any
// field may be nil; routes backed by a nil collaborator report 503.
type Dependencies struct {
	CircuitBreakers *resilience.CircuitBreakerRegistry
	Bulkheads       *resilience.BulkheadRegistry
	RateLimiters    *resilience.RateLimiterRegistry
	Policies        *tenancy.PolicyEngine
	Tenants         *tenancy.Manager
	Pipeline        *tradepipeline.Pipeline
	Reconciler      *tradepipeline.Reconciler
	Monitor         *capacity.Monitor
	Scaling         *capacity.ScalingManager
	Costs           *capacity.CostAnalyzer
}

// NewRouter builds the chi mux backing the ops API.
func NewRouter(deps Dependencies, log zerolog.Logger) *chi.Mux {
	log = log.With().Str("component", "ops_router").Logger()
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := &handlers{deps: deps, log: log}

	r.Get("/healthz", h.handleHealth)

	r.Route("/registries", func(r chi.Router) {
		r.Get("/circuit-breakers", h.handleCircuitBreakers)
		r.Get("/bulkheads", h.handleBulkheads)
		r.Get("/rate-limiters", h.handleRateLimiters)
	})

	r.Route("/policies", func(r chi.Router) {
		r.Get("/", h.handleListPolicies)
		r.Post("/", h.handleCreatePolicy)
		r.Delete("/{id}", h.handleDeletePolicy)
	})

	r.Route("/tradepipeline", func(r chi.Router) {
		r.Get("/stats", h.handlePipelineStats)
		r.Get("/positions", h.handlePositions)
		r.Get("/reconciliation", h.handleReconciliationStats)
	})

	r.Route("/capacity", func(r chi.Router) {
		r.Get("/snapshot", h.handleCapacitySnapshot)
		r.Get("/scaling-history", h.handleScalingHistory)
		r.Get("/cost", h.handleCostSummary)
	})

	return r
}

type handlers struct {
	deps Dependencies
	log  zerolog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeUnavailable(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": what + " is not configured"})
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleCircuitBreakers(w http.ResponseWriter, r *http.Request) {
	if h.deps.CircuitBreakers == nil {
		writeUnavailable(w, "circuit breaker registry")
		return
	}
	type entry struct {
		Name   string                  `json:"name"`
		State  resilience.State        `json:"state"`
		Counts resilience.Counts       `json:"counts"`
	}
	breakers := h.deps.CircuitBreakers.All()
	out := make([]entry, 0, len(breakers))
	for _, cb := range breakers {
		out = append(out, entry{Name: cb.Name(), State: cb.State(), Counts: cb.Counts()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) handleBulkheads(w http.ResponseWriter, r *http.Request) {
	if h.deps.Bulkheads == nil {
		writeUnavailable(w, "bulkhead registry")
		return
	}
	type entry struct {
		Name  string                   `json:"name"`
		Stats resilience.BulkheadStats `json:"stats"`
	}
	bulkheads := h.deps.Bulkheads.All()
	out := make([]entry, 0, len(bulkheads))
	for _, b := range bulkheads {
		out = append(out, entry{Name: b.Name(), Stats: b.Stats()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) handleRateLimiters(w http.ResponseWriter, r *http.Request) {
	if h.deps.RateLimiters == nil {
		writeUnavailable(w, "rate limiter registry")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.RateLimiters.All())
}

func (h *handlers) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	if h.deps.Policies == nil {
		writeUnavailable(w, "policy engine")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Policies.Policies())
}

func (h *handlers) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	if h.deps.Policies == nil {
		writeUnavailable(w, "policy engine")
		return
	}
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return
	}
	created := h.deps.Policies.AddPolicy(tenancy.Policy{
		WorkspaceID:  req.WorkspaceID,
		ResourceType: req.ResourceType,
		Role:         req.Role,
		AccessLevel:  req.AccessLevel,
		Action:       req.Action,
		Priority:     req.Priority,
		Conditions:   req.Conditions,
		Enabled:      req.Enabled,
		Description:  req.Description,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (h *handlers) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	if h.deps.Policies == nil {
		writeUnavailable(w, "policy engine")
		return
	}
	h.deps.Policies.RemovePolicy(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handlePipelineStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Pipeline == nil {
		writeUnavailable(w, "trade pipeline")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Pipeline.Stats())
}

func (h *handlers) handlePositions(w http.ResponseWriter, r *http.Request) {
	if h.deps.Pipeline == nil {
		writeUnavailable(w, "trade pipeline")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Pipeline.Positions())
}

func (h *handlers) handleReconciliationStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Reconciler == nil {
		writeUnavailable(w, "reconciler")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Reconciler.Stats())
}

func (h *handlers) handleCapacitySnapshot(w http.ResponseWriter, r *http.Request) {
	if h.deps.Monitor == nil {
		writeUnavailable(w, "resource monitor")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Monitor.TakeSnapshot())
}

func (h *handlers) handleScalingHistory(w http.ResponseWriter, r *http.Request) {
	if h.deps.Scaling == nil {
		writeUnavailable(w, "scaling manager")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Scaling.History())
}

func (h *handlers) handleCostSummary(w http.ResponseWriter, r *http.Request) {
	if h.deps.Costs == nil {
		writeUnavailable(w, "cost analyzer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period_costs":         h.deps.Costs.PeriodCosts(),
		"savings_opportunities": h.deps.Costs.SavingsOpportunities(),
		"right_sizing":         h.deps.Costs.RightSizingRecommendations(),
		"efficiency_score":     h.deps.Costs.EfficiencyScore(),
	})
}
