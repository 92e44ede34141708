package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/missionctl/internal/config"
	"github.com/mattjoyce/missionctl/internal/supervisor"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Store.Path = t.TempDir()
	cfg.Gateway.URL = "ws://127.0.0.1:9400"
	cfg.Gateway.Token = "gw-token"
	return cfg
}

func issueFields(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Field)
	}
	return out
}

func hasIssue(issues []Issue, substr string) bool {
	for _, i := range issues {
		if strings.Contains(i.Message, substr) || strings.Contains(i.Field, substr) {
			return true
		}
	}
	return false
}

func TestValidateCleanConfig(t *testing.T) {
	t.Parallel()

	d := New(validConfig(t), supervisor.DefaultRegistry())
	r := d.Validate()
	if !r.Valid {
		t.Fatalf("valid config flagged: %v", issueFields(r.Errors))
	}
}

func TestValidateServiceTimings(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Service.TickInterval = 0
	cfg.Service.MaxAttempts = 0

	r := New(cfg, supervisor.DefaultRegistry()).Validate()
	if r.Valid {
		t.Fatal("broken timings accepted")
	}
	if !hasIssue(r.Errors, "tick_interval") || !hasIssue(r.Errors, "max_dispatch_attempts") {
		t.Fatalf("missing timing errors: %v", issueFields(r.Errors))
	}
}

func TestValidateWarnsShortRetryWindow(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Service.TickInterval = time.Minute
	cfg.Service.RetryAfter = 10 * time.Second

	r := New(cfg, supervisor.DefaultRegistry()).Validate()
	if !r.Valid {
		t.Fatalf("unexpected errors: %v", issueFields(r.Errors))
	}
	if !hasIssue(r.Warnings, "retry_after") {
		t.Fatalf("missing retry_after warning: %v", issueFields(r.Warnings))
	}
}

func TestValidateStorePath(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Store.Path = filepath.Join(t.TempDir(), "not-yet")
	r := New(cfg, supervisor.DefaultRegistry()).Validate()
	if !r.Valid {
		t.Fatal("missing store dir must only warn")
	}
	if !hasIssue(r.Warnings, "will be created on start") {
		t.Fatalf("missing store warning: %v", r.Warnings)
	}

	// A file where the directory should be is an error.
	filePath := filepath.Join(t.TempDir(), "store-file")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg.Store.Path = filePath
	r = New(cfg, supervisor.DefaultRegistry()).Validate()
	if r.Valid || !hasIssue(r.Errors, "expected a directory") {
		t.Fatalf("file-as-store accepted: %v", r.Errors)
	}
}

func TestValidateGateway(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Gateway.URL = ""
	cfg.Gateway.Token = ""
	r := New(cfg, supervisor.DefaultRegistry()).Validate()
	if !r.Valid {
		t.Fatal("absent gateway must only warn")
	}
	if !hasIssue(r.Warnings, "agent CLI fallback") {
		t.Fatalf("missing CLI-only warning: %v", r.Warnings)
	}

	cfg = validConfig(t)
	cfg.Gateway.URL = "http://127.0.0.1:9400"
	r = New(cfg, supervisor.DefaultRegistry()).Validate()
	if r.Valid || !hasIssue(r.Errors, "not ws or wss") {
		t.Fatalf("http gateway URL accepted: %v", r.Errors)
	}

	cfg = validConfig(t)
	cfg.Gateway.Token = ""
	r = New(cfg, supervisor.DefaultRegistry()).Validate()
	if r.Valid || !hasIssue(r.Errors, "gateway.token") {
		t.Fatalf("tokenless gateway accepted: %v", r.Errors)
	}
}

func TestValidateTokenScopes(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.API.Enabled = true
	cfg.API.Auth.Tokens = []config.APIToken{
		{Token: "t1", Scopes: []string{"tasks:ro", "*"}},
		{Token: "t2", Scopes: []string{"notascope", "widgets:ro", "tasks:execute"}},
	}

	r := New(cfg, supervisor.DefaultRegistry()).Validate()
	if r.Valid {
		t.Fatal("bad scopes accepted")
	}
	if !hasIssue(r.Errors, "expected format") {
		t.Fatalf("missing format error: %v", r.Errors)
	}
	if !hasIssue(r.Errors, "unknown resource") {
		t.Fatalf("missing resource error: %v", r.Errors)
	}
	if !hasIssue(r.Errors, "invalid access type") {
		t.Fatalf("missing access error: %v", r.Errors)
	}
}

func TestValidateRegistry(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)

	r := New(cfg, supervisor.NewRegistry(nil)).Validate()
	if r.Valid || !hasIssue(r.Errors, "registry is empty") {
		t.Fatalf("empty registry accepted: %v", r.Errors)
	}

	workersOnly := supervisor.NewRegistry(map[string]supervisor.Capability{
		"solo": {Role: "Worker", CanExecute: true},
	})
	r = New(cfg, workersOnly).Validate()
	if !r.Valid {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	if !hasIssue(r.Warnings, "no supervisor agent") {
		t.Fatalf("missing supervisor warning: %v", r.Warnings)
	}
	if !hasIssue(r.Warnings, "will never match a task") {
		t.Fatalf("missing skill-less warning: %v", r.Warnings)
	}
}

func TestValidateDeprecatedAPIKey(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.API.Enabled = true
	cfg.API.Auth.APIKey = "legacy"

	r := New(cfg, supervisor.DefaultRegistry()).Validate()
	if !r.Valid {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	if !hasIssue(r.Warnings, "legacy api_key") {
		t.Fatalf("missing deprecation warning: %v", r.Warnings)
	}
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()

	clean := &Result{Valid: true}
	if got := FormatHuman(clean); got != "Configuration valid.\n" {
		t.Fatalf("clean report: %q", got)
	}

	broken := &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "gateway", Field: "gateway.token", Message: "missing"}},
		Warnings: []Issue{{Category: "registry", Message: "no supervisor"}},
	}
	got := FormatHuman(broken)
	if !strings.Contains(got, "Configuration invalid (1 error(s), 1 warning(s))") {
		t.Fatalf("report header: %q", got)
	}
	if !strings.Contains(got, "ERROR [gateway] gateway.token: missing") {
		t.Fatalf("error line: %q", got)
	}
	if !strings.Contains(got, "WARN  [registry] no supervisor") {
		t.Fatalf("warning line: %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()

	out, err := FormatJSON(&Result{Valid: true})
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	if !strings.Contains(out, `"valid": true`) {
		t.Fatalf("json report: %q", out)
	}
}
