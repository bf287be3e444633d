package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/commitquest/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Backend.Enabled() {
		t.Error("backend should be disabled by default")
	}
}

func TestGitHubConfig_Invalid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.GitHub.CommitsPerPage = 500
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "github") {
		t.Fatalf("err = %v, want github validation error", err)
	}

	cfg = NewDefaultConfig()
	cfg.GitHub.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad base_url should fail")
	}
}

func TestBackendConfig_RequiresToken(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Backend.BaseURL = "http://localhost:8000"
	if err := cfg.Validate(); err == nil {
		t.Fatal("backend without token should fail")
	}
	cfg.Backend.Token = "jwt"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("backend with token should pass: %v", err)
	}
	if !cfg.Backend.Enabled() {
		t.Error("backend should be enabled")
	}
}

func TestLayoutConfig_Negative(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Layout.RowHeight = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative row height should fail")
	}
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	t.Setenv("CQ_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
app:
  http:
    port: 9090
auth:
  mode: token
  token: ${CQ_TEST_TOKEN}
github:
  cache_ttl: 90s
layout:
  row_height: 64
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Address() != ":9090" {
		t.Errorf("address = %q", cfg.App.HTTP.Address())
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.GitHub.CacheTTL != 90*time.Second {
		t.Errorf("cache_ttl = %v", cfg.GitHub.CacheTTL)
	}
	if cfg.GitHub.CommitsPerPage != 50 {
		t.Errorf("commits_per_page default lost: %d", cfg.GitHub.CommitsPerPage)
	}
	if cfg.Layout.RowHeight != 64 || cfg.Layout.LaneWidth != 120 {
		t.Errorf("layout = %+v", cfg.Layout)
	}
}
