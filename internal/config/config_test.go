package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "REQUEST_TIMEOUT", "GEMINI_API_KEY", "TESSERACT_LANGUAGE", "AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("ServerAddress() = %s", cfg.ServerAddress())
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if cfg.TesseractLanguage != DefaultTesseractLanguage {
		t.Errorf("TesseractLanguage = %s, want %s", cfg.TesseractLanguage, DefaultTesseractLanguage)
	}
	if cfg.HasGeminiCredential() {
		t.Error("expected no Gemini credential")
	}
	if cfg.HasAzureStorage() {
		t.Error("expected no Azure storage")
	}
}

func TestLoadFromEnv_Credential(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "  secret  ")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.GeminiAPIKey != "secret" {
		t.Errorf("GeminiAPIKey = %q, want trimmed value", cfg.GeminiAPIKey)
	}
	if !cfg.HasGeminiCredential() {
		t.Error("expected Gemini credential")
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non numeric port", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"zero body size", map[string]string{"MAX_REQUEST_BODY_SIZE": "0"}},
		{"azure account without key", map[string]string{"AZURE_STORAGE_ACCOUNT": "acct", "AZURE_STORAGE_KEY": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadFromEnv(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseDurationOrDefault_IgnoresInvalid(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	if got := parseDurationOrDefault("REQUEST_TIMEOUT", time.Second); got != time.Second {
		t.Errorf("parseDurationOrDefault() = %s, want 1s", got)
	}
}
