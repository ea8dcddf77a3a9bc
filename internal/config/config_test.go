package config

import (
	"strings"
	"testing"
)

// 必須環境変数をすべて設定するヘルパー。
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("COOKIE_SECRET", "test-cookie-secret")
	t.Setenv("GOOGLE_CLIENT_ID", "test-client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "test-client-secret")
	t.Setenv("BASE_URL", "http://localhost:8888")
}

func TestLoad_AllRequiredSet_Succeeds(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MongoURI != "mongodb://localhost:27017" {
		t.Errorf("MongoURI = %q", cfg.MongoURI)
	}
	if cfg.CookieSecret != "test-cookie-secret" {
		t.Errorf("CookieSecret = %q", cfg.CookieSecret)
	}
}

func TestLoad_MissingRequired_ReturnsError(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MONGODB_URI", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MONGODB_URI")
	}
	if !strings.Contains(err.Error(), "MONGODB_URI") {
		t.Errorf("error should name the missing variable, got: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DatabaseName != "gatehouse" {
		t.Errorf("DatabaseName = %q, want gatehouse", cfg.DatabaseName)
	}
	if cfg.ServerPort != "8888" {
		t.Errorf("ServerPort = %q, want 8888", cfg.ServerPort)
	}
	if cfg.SessionMaxAge != 86400*31 {
		t.Errorf("SessionMaxAge = %d, want %d", cfg.SessionMaxAge, 86400*31)
	}
	if cfg.Debug {
		t.Error("Debug should default to false")
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want 120", cfg.RateLimitGeneral)
	}
}

func TestLoad_OptionalOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_NAME", "appdb")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SESSION_MAX_AGE", "3600")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DatabaseName != "appdb" {
		t.Errorf("DatabaseName = %q, want appdb", cfg.DatabaseName)
	}
	if cfg.ServerPort != "9000" {
		t.Errorf("ServerPort = %q, want 9000", cfg.ServerPort)
	}
	if cfg.SessionMaxAge != 3600 {
		t.Errorf("SessionMaxAge = %d, want 3600", cfg.SessionMaxAge)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

func TestLoad_InvalidInt_UsesDefault(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSION_MAX_AGE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionMaxAge != 86400*31 {
		t.Errorf("SessionMaxAge = %d, want default %d", cfg.SessionMaxAge, 86400*31)
	}
}

func TestLoad_CookieSecureDerivedFromBaseURL(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure should be false for http base URL")
	}

	t.Setenv("BASE_URL", "https://gatehouse.example.com")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should be true for https base URL")
	}
}

func TestRedirectURL_JoinsProviderPath(t *testing.T) {
	cfg := &Config{BaseURL: "http://localhost:8888/"}

	if got := cfg.RedirectURL("google"); got != "http://localhost:8888/auth/google" {
		t.Errorf("RedirectURL(google) = %q", got)
	}
}
