package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdirTemp switches into a fresh temp directory, optionally writing config.yaml there.
func chdirTemp(t *testing.T, yamlContent string) {
	t.Helper()
	tmpDir := t.TempDir()

	if yamlContent != "" {
		if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(originalDir)
	})

	// Keep the host environment out of the way
	for _, key := range []string{"BASE_URL", "PORT", "ENVIRONMENT", "API_BASE_URL", "SESSION_SECRET", "LOGIN_TIMEOUT", "REDIS_HOST", "TLS_CERT_PATH", "TLS_KEY_PATH"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	chdirTemp(t, `
port: "3444"
env: "test"
api:
  base_url: "https://api.example.com"
auth:
  login_timeout: 5s
redis:
  host: "redis.example.com"
  port: 6379
`)

	t.Setenv("PORT", "4444")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "4444" {
		t.Errorf("expected Port=4444 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.BaseURL != "http://localhost:4444" {
		t.Errorf("expected BaseURL auto-derived from PORT, got %s", cfg.BaseURL)
	}
	if cfg.API.BaseURL != "https://api.example.com" {
		t.Errorf("expected API.BaseURL from yaml, got %s", cfg.API.BaseURL)
	}
	if cfg.Auth.LoginTimeout != 5*time.Second {
		t.Errorf("expected LoginTimeout=5s from yaml, got %v", cfg.Auth.LoginTimeout)
	}
	if cfg.Redis.Host != "redis.example.com" {
		t.Errorf("expected Redis.Host from yaml, got %s", cfg.Redis.Host)
	}
}

func TestLoad_MissingConfigFileUsesDefaults(t *testing.T) {
	chdirTemp(t, "")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load() without config.yaml failed: %v", err)
	}

	if cfg.Auth.LoginTimeout != 10*time.Second {
		t.Errorf("expected default LoginTimeout=10s, got %v", cfg.Auth.LoginTimeout)
	}
	if cfg.Auth.RedirectDelay != time.Second {
		t.Errorf("expected default RedirectDelay=1s, got %v", cfg.Auth.RedirectDelay)
	}
	if cfg.API.BaseURL != "http://localhost:8080" {
		t.Errorf("expected default API.BaseURL, got %s", cfg.API.BaseURL)
	}
	if cfg.Redis.Host != "" {
		t.Errorf("expected redis disabled by default, got host %q", cfg.Redis.Host)
	}
	if !cfg.IsLocal() {
		t.Errorf("expected local environment by default, got %s", cfg.Env)
	}
}

func TestLoad_BaseURLExplicit(t *testing.T) {
	chdirTemp(t, "")
	t.Setenv("BASE_URL", "https://admin.example.com")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.BaseURL != "https://admin.example.com" {
		t.Errorf("expected explicit BaseURL, got %s", cfg.BaseURL)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "session secret required outside local",
			env:     map[string]string{"ENVIRONMENT": "production"},
			wantErr: "SESSION_SECRET",
		},
		{
			name:    "api base url must be absolute",
			env:     map[string]string{"API_BASE_URL": "api.example.com"},
			wantErr: "api.base_url",
		},
		{
			name:    "api base url must be http",
			env:     map[string]string{"API_BASE_URL": "ftp://api.example.com"},
			wantErr: "scheme",
		},
		{
			name:    "login timeout must be positive",
			env:     map[string]string{"LOGIN_TIMEOUT": "0s"},
			wantErr: "login_timeout",
		},
		{
			name:    "tls pair must be complete",
			env:     map[string]string{"TLS_CERT_PATH": "/tmp/cert.pem"},
			wantErr: "tls_key_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("dev")
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
