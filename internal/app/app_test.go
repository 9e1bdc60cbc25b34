package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/compactconnect/apps/edge/internal/config"
	"github.com/compactconnect/apps/edge/internal/csp"
	"github.com/compactconnect/apps/edge/internal/environment"
	"github.com/compactconnect/apps/edge/internal/handlers"
	"github.com/compactconnect/apps/edge/internal/headers"
	"github.com/compactconnect/apps/edge/internal/metrics"
	"github.com/compactconnect/apps/edge/internal/report"
)

type testEnv struct {
	router http.Handler
	logs   *bytes.Buffer
}

func setupTestEnv(t *testing.T) testEnv {
	t.Helper()

	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>spa</html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{
		StaticDir:          static,
		CORSAllowedOrigins: []string{"http://localhost:3018"},
		APIMaxBodyBytes:    64 * 1024,
		ReportRateLimit:    100,
		RateLimitMaxIPs:    100,
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	table, err := environment.Builtin()
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	injector := headers.NewInjector(table, csp.NewBuilder(logger, csp.WithReportURI("/api/csp-reports")), m)
	h := handlers.NewServer(cfg, table, injector, report.NewMemoryStore(), m, logger)

	router, err := NewRouter(cfg, h, logger)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return testEnv{router: router, logs: &logs}
}

func request(t *testing.T, router http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.Host = "app.compactconnect.org"
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestEveryResponseCarriesSecurityHeaders(t *testing.T) {
	env := setupTestEnv(t)
	for _, target := range []string{"/", "/app.js", "/Licensing/search", "/api/health", "/api/nope"} {
		rr := request(t, env.router, http.MethodGet, target, nil, "")
		if rr.Header().Get(headers.FrameOptions) != "DENY" {
			t.Fatalf("%s: missing X-Frame-Options", target)
		}
		if !strings.HasPrefix(rr.Header().Get(headers.ContentSecurityPolicy), "default-src 'none';") {
			t.Fatalf("%s: unexpected csp %q", target, rr.Header().Get(headers.ContentSecurityPolicy))
		}
		if rr.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: missing request id", target)
		}
	}
}

func TestSPAFallback(t *testing.T) {
	env := setupTestEnv(t)
	rr := request(t, env.router, http.MethodGet, "/Licensing/search", nil, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "spa") {
		t.Fatalf("expected index.html, got %d %q", rr.Code, rr.Body.String())
	}
	rr = request(t, env.router, http.MethodGet, "/app.js", nil, "")
	if !strings.Contains(rr.Body.String(), "console.log") {
		t.Fatalf("expected asset, got %q", rr.Body.String())
	}
}

func TestPolicyEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	rr := request(t, env.router, http.MethodGet, "/api/policy?host=app.test.compactconnect.org", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var body struct {
		Environment string           `json:"environment"`
		Fallback    bool             `json:"fallback"`
		Policy      string           `json:"policy"`
		Headers     []headers.Header `json:"headers"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Environment != "test" || body.Fallback {
		t.Fatalf("unexpected resolution %+v", body)
	}
	if !strings.Contains(body.Policy, "https://api.test.compactconnect.org") || !strings.HasSuffix(body.Policy, "report-uri /api/csp-reports;") {
		t.Fatalf("unexpected policy %s", body.Policy)
	}
	if len(body.Headers) != 6 {
		t.Fatalf("expected 6 headers, got %d", len(body.Headers))
	}

	rr = request(t, env.router, http.MethodGet, "/api/policy", nil, "")
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Environment != "production" || body.Fallback {
		t.Fatalf("request host should resolve to production: %+v", body)
	}
}

func TestEnvironmentsEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	rr := request(t, env.router, http.MethodGet, "/api/environments", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Default      string                    `json:"default"`
		Environments []environment.Environment `json:"environments"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Default != "production" || len(body.Environments) != 3 {
		t.Fatalf("unexpected environments %+v", body)
	}
}

func TestReportRoundTrip(t *testing.T) {
	env := setupTestEnv(t)
	payload := `{"csp-report":{"document-uri":"https://app.compactconnect.org/","effective-directive":"connect-src","blocked-uri":"https://evil.example/x"}}`

	for i := 0; i < 2; i++ {
		rr := request(t, env.router, http.MethodPost, "/api/csp-reports", strings.NewReader(payload), "application/csp-report")
		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d (%s)", rr.Code, rr.Body.String())
		}
	}

	rr := request(t, env.router, http.MethodGet, "/api/csp-reports?limit=5", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var body struct {
		Reports []report.Report `json:"reports"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Reports) != 1 || body.Reports[0].Occurrences != 2 {
		t.Fatalf("expected one merged report, got %+v", body.Reports)
	}

	rr = request(t, env.router, http.MethodGet, "/metrics", nil, "")
	if !strings.Contains(rr.Body.String(), `cc_edge_csp_reports_total{directive="connect-src"} 2`) {
		t.Fatalf("report metric missing:\n%s", rr.Body.String())
	}
}

func TestReportRejectsMalformedBody(t *testing.T) {
	env := setupTestEnv(t)
	rr := request(t, env.router, http.MethodPost, "/api/csp-reports", strings.NewReader(`{"nope":1}`), "application/json")
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), `"code":"invalid_body"`) {
		t.Fatalf("expected invalid_body, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestValidatorRejectsBadLimit(t *testing.T) {
	env := setupTestEnv(t)
	rr := request(t, env.router, http.MethodGet, "/api/csp-reports?limit=0", nil, "")
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), `"code":"validation_error"`) {
		t.Fatalf("expected validation_error, got %d %s", rr.Code, rr.Body.String())
	}
}
