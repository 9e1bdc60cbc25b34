package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/compactconnect/apps/edge/internal/headers"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestPolicyCommand(t *testing.T) {
	out, stderr, err := run(t, "policy", "--host", "compactconnect.org")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if !strings.HasPrefix(out, "default-src 'none';\nmanifest-src 'self';") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(stderr, "using production") {
		t.Fatalf("expected fallback notice, got %q", stderr)
	}
}

func TestHeadersCommandJSON(t *testing.T) {
	out, _, err := run(t, "headers", "--host", "app.test.compactconnect.org", "--json")
	if err != nil {
		t.Fatalf("headers: %v", err)
	}
	var hdrs []headers.Header
	if err := json.Unmarshal([]byte(out), &hdrs); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(hdrs) != 6 || hdrs[0].Key != headers.StrictTransportSecurity {
		t.Fatalf("unexpected headers %v", hdrs)
	}
}

func TestEnvironmentsCommand(t *testing.T) {
	out, _, err := run(t, "environments")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "production") || !strings.Contains(out, "https://api.compactconnect.org") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "envs.yaml")
	if err := os.WriteFile(path, []byte("default: prod\nenvironments:\n  - name: prod\n    webDomain: app.example.org\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, _, err := run(t, "validate", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "1 environments, default prod") {
		t.Fatalf("unexpected output %q", out)
	}

	if err := os.WriteFile(path, []byte("default: other\nenvironments:\n  - name: prod\n    webDomain: app.example.org\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := run(t, "validate", path); err == nil {
		t.Fatal("expected error for missing default environment")
	}
}
