package handlers

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/compactconnect/apps/edge/internal/config"
	"github.com/compactconnect/apps/edge/internal/environment"
	"github.com/compactconnect/apps/edge/internal/headers"
	"github.com/compactconnect/apps/edge/internal/httpx"
	"github.com/compactconnect/apps/edge/internal/metrics"
	"github.com/compactconnect/apps/edge/internal/middleware"
	"github.com/compactconnect/apps/edge/internal/report"
)

const (
	defaultReportLimit = 50
	maxReportLimit     = 500
)

type Server struct {
	Config   config.Config
	Table    *environment.Table
	Injector *headers.Injector
	Reports  report.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	now      func() time.Time
}

func NewServer(cfg config.Config, table *environment.Table, injector *headers.Injector, reports report.Store, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		Config:   cfg,
		Table:    table,
		Injector: injector,
		Reports:  reports,
		Metrics:  m,
		Logger:   logger,
		now:      time.Now,
	}
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type GetPolicyParams struct {
	Host *string
}

type policyResponse struct {
	Host        string           `json:"host"`
	Environment string           `json:"environment"`
	Fallback    bool             `json:"fallback"`
	Policy      string           `json:"policy"`
	Headers     []headers.Header `json:"headers"`
	Dropped     any              `json:"dropped,omitempty"`
}

// GetPolicy previews the headers served for a host; without ?host= the
// request's own host is used.
func (s *Server) GetPolicy(w http.ResponseWriter, r *http.Request) {
	var params GetPolicyParams
	if err := runtime.BindQueryParameter("form", true, false, "host", r.URL.Query(), &params.Host); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Invalid host parameter", err.Error())
		return
	}

	host := stripPort(r.Host)
	if params.Host != nil {
		host = strings.TrimSpace(*params.Host)
	}

	result := s.Injector.For(host)
	resp := policyResponse{
		Host:        host,
		Environment: result.Resolution.Environment.Name,
		Fallback:    result.Resolution.Fallback,
		Policy:      result.Policy.Value,
		Headers:     result.Headers,
	}
	if len(result.Policy.Dropped) > 0 {
		resp.Dropped = result.Policy.Dropped
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type environmentsResponse struct {
	Default      string                    `json:"default"`
	Environments []environment.Environment `json:"environments"`
}

func (s *Server) GetEnvironments(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, environmentsResponse{
		Default:      s.Table.Default().Name,
		Environments: s.Table.Environments(),
	})
}

// PostCSPReport stores a browser violation report.
func (s *Server) PostCSPReport(w http.ResponseWriter, r *http.Request) {
	rep, err := report.Decode(r.Body, r.UserAgent(), s.now())
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteError(w, r, http.StatusRequestEntityTooLarge, httpx.CodeBodyTooLarge, "Report body too large", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeInvalidBody, "Malformed CSP report", nil)
		return
	}

	saved, err := s.Reports.Save(r.Context(), rep)
	if err != nil {
		s.Logger.Error("save csp report", "error", err, "request_id", middleware.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "Failed to store report", nil)
		return
	}

	s.Metrics.ReportReceived(saved.EffectiveDirective)
	s.Logger.Info("csp_report_received",
		"directive", saved.EffectiveDirective,
		"blocked_uri", saved.BlockedURI,
		"document_uri", saved.DocumentURI,
		"occurrences", saved.Occurrences,
		"request_id", middleware.RequestIDFromContext(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

type GetCSPReportsParams struct {
	Limit *int
}

func (s *Server) GetCSPReports(w http.ResponseWriter, r *http.Request) {
	var params GetCSPReportsParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Invalid limit parameter", err.Error())
		return
	}
	limit := defaultReportLimit
	if params.Limit != nil {
		limit = *params.Limit
	}
	if limit < 1 || limit > maxReportLimit {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, "limit must be between 1 and 500", nil)
		return
	}

	reports, err := s.Reports.Recent(r.Context(), limit)
	if err != nil {
		s.Logger.Error("list csp reports", "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "Failed to load reports", nil)
		return
	}
	if reports == nil {
		reports = []report.Report{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
