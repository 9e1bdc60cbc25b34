package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/compactconnect/apps/edge/internal/config"
	"github.com/compactconnect/apps/edge/internal/csp"
	"github.com/compactconnect/apps/edge/internal/environment"
	"github.com/compactconnect/apps/edge/internal/headers"
	"github.com/compactconnect/apps/edge/internal/report"
)

type failingStore struct{}

func (failingStore) Save(context.Context, report.Report) (report.Report, error) {
	return report.Report{}, errors.New("database unavailable")
}

func (failingStore) Recent(context.Context, int) ([]report.Report, error) {
	return nil, errors.New("database unavailable")
}

func newServer(t *testing.T, store report.Store) *Server {
	t.Helper()
	table, err := environment.Builtin()
	if err != nil {
		t.Fatal(err)
	}
	injector := headers.NewInjector(table, csp.NewBuilder(nil), nil)
	return NewServer(config.Config{}, table, injector, store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetPolicyUsesRequestHostWithoutPort(t *testing.T) {
	s := newServer(t, report.NewMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/api/policy", nil)
	req.Host = "app.beta.compactconnect.org:8080"
	rr := httptest.NewRecorder()
	s.GetPolicy(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"environment":"beta"`) {
		t.Fatalf("expected beta environment, got %s", rr.Body.String())
	}
}

func TestGetPolicyUnknownHostFallsBack(t *testing.T) {
	s := newServer(t, report.NewMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/api/policy?host=compactconnect.org", nil)
	rr := httptest.NewRecorder()
	s.GetPolicy(rr, req)
	body := rr.Body.String()
	if !strings.Contains(body, `"environment":"production"`) || !strings.Contains(body, `"fallback":true`) {
		t.Fatalf("expected production fallback, got %s", body)
	}
}

func TestReportStoreFailures(t *testing.T) {
	s := newServer(t, failingStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/csp-reports", strings.NewReader(`{"csp-report":{"document-uri":"https://a","effective-directive":"img-src"}}`))
	rr := httptest.NewRecorder()
	s.PostCSPReport(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.GetCSPReports(rr, httptest.NewRequest(http.MethodGet, "/api/csp-reports", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestGetCSPReportsRejectsNonNumericLimit(t *testing.T) {
	s := newServer(t, report.NewMemoryStore())
	rr := httptest.NewRecorder()
	s.GetCSPReports(rr, httptest.NewRequest(http.MethodGet, "/api/csp-reports?limit=ten", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetCSPReportsEmptyList(t *testing.T) {
	s := newServer(t, report.NewMemoryStore())
	rr := httptest.NewRecorder()
	s.GetCSPReports(rr, httptest.NewRequest(http.MethodGet, "/api/csp-reports", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"reports":[]`) {
		t.Fatalf("expected empty list, got %d %s", rr.Code, rr.Body.String())
	}
}
