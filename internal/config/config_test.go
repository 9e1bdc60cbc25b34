package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_ADDR", "")
	t.Setenv("CSP_REPORT_URI", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("API_MAX_BODY_KB", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.APIMaxBodyBytes != 64*1024 {
		t.Fatalf("unexpected body limit %d", cfg.APIMaxBodyBytes)
	}
	if cfg.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("unexpected read header timeout %s", cfg.ReadHeaderTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9999")
	t.Setenv("CSP_REPORT_URI", "/api/csp-reports")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://app.compactconnect.org, ,https://app.test.compactconnect.org ")
	t.Setenv("REPORT_RATE_LIMIT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ReportURI != "/api/csp-reports" {
		t.Fatalf("overrides ignored: %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://app.test.compactconnect.org" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ReportRateLimit != 60 {
		t.Fatalf("bad int should fall back, got %d", cfg.ReportRateLimit)
	}
}

func TestLoadRejectsPlainHTTPReportURI(t *testing.T) {
	t.Setenv("CSP_REPORT_URI", "http://reports.example.org")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadEdge(t *testing.T) {
	t.Setenv("CSP_ENVIRONMENTS_FILE", "/opt/environments.yaml")
	t.Setenv("CSP_REPORT_URI", "")
	edge := LoadEdge()
	if edge.EnvironmentsFile != "/opt/environments.yaml" || edge.ReportURI != "" {
		t.Fatalf("unexpected edge config %+v", edge)
	}
}
