package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

var errServiceDisabled = errors.New("service not configured")

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}).Write(w)
}

// handleReady checks the persistence backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.deps.Health == nil {
		checks["storage"] = "not_configured"
	} else if err := s.deps.Health.Ping(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	checks["cache"] = map[string]any{"entries": s.dashCache.Size()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request, cache and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	limitMetrics := s.rateLimiter.GetMetrics()
	hits, misses := s.dashCache.Stats()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_avg_ms Average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_avg_ms gauge\n")
	fmt.Fprintf(w, "http_response_time_avg_ms %.3f\n\n", float64(traceMetrics.AverageResponseTime.Microseconds())/1000)

	fmt.Fprintf(w, "# HELP dashboard_cache_hits_total Total cache hits\n")
	fmt.Fprintf(w, "# TYPE dashboard_cache_hits_total counter\n")
	fmt.Fprintf(w, "dashboard_cache_hits_total %d\n\n", hits)

	fmt.Fprintf(w, "# HELP dashboard_cache_misses_total Total cache misses\n")
	fmt.Fprintf(w, "# TYPE dashboard_cache_misses_total counter\n")
	fmt.Fprintf(w, "dashboard_cache_misses_total %d\n\n", misses)

	fmt.Fprintf(w, "# HELP dashboard_cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE dashboard_cache_entries gauge\n")
	fmt.Fprintf(w, "dashboard_cache_entries %d\n\n", s.dashCache.Size())

	fmt.Fprintf(w, "# HELP rate_limit_rejected_total Requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE rate_limit_rejected_total counter\n")
	fmt.Fprintf(w, "rate_limit_rejected_total %d\n\n", limitMetrics.Rejected)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", limitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", s.detector.SuspiciousRequests())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

type exportRequest struct {
	Start    core.Date            `json:"start"`
	End      core.Date            `json:"end"`
	Type     core.TransactionType `json:"type"`
	Search   string               `json:"search"`
	WalletID string               `json:"walletId"`
}

func queryFromExport(req exportRequest) (aggregate.Query, error) {
	q := aggregate.Query{
		Type:     core.TransactionType(strings.ToUpper(strings.TrimSpace(string(req.Type)))),
		Search:   sanitizeInput(req.Search),
		WalletID: strings.TrimSpace(req.WalletID),
		Start:    req.Start,
		End:      req.End,
	}
	if q.Type != "" && !q.Type.Valid() {
		return q, core.Invalid("type", core.ErrInvalidType)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.Start.After(q.End.Time) {
		return q, core.Invalid("end", core.ErrInvalidDate)
	}
	return q, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Export == nil {
		ErrorResponse(http.StatusServiceUnavailable, errServiceDisabled.Error()).Write(w)
		return
	}
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, ErrEmptyBody) {
		BadRequestError(err.Error()).Write(w)
		return
	}
	q, err := queryFromExport(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	owner := ownerFrom(r)
	ref, err := s.deps.Export.Export(r.Context(), owner, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentExport).InfoContext(r.Context(), "Report exported",
		applog.FieldOwnerID, owner,
		"ref", ref)
	OK(map[string]string{"ref": ref}).Write(w)
}

type insightsResponse struct {
	Advice string `json:"advice"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		ErrorResponse(http.StatusServiceUnavailable, errServiceDisabled.Error()).Write(w)
		return
	}
	text, err := s.deps.Assistant.Advice(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(insightsResponse{Advice: text}).Write(w)
}
