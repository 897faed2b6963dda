package container

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-jp-digitizer/internal/config"

	"github.com/gin-gonic/gin"
)

func testConfig() *config.Config {
	return &config.Config{
		Host:               "127.0.0.1",
		Port:               "0",
		RequestTimeout:     5 * time.Second,
		ImageFetchTimeout:  time.Second,
		MaxRequestBodySize: 1 << 20,
		GeminiModel:        "gemini-1.5-flash",
		TesseractLanguage:  "jpn",
	}
}

func TestNewContainer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, err := NewContainer(testConfig())
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
	if c.Handler() == nil || c.Pipeline() == nil {
		t.Fatal("expected handler and pipeline to be wired")
	}

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /health = %d", w.Code)
	}
}

func TestNewContainer_NilConfig(t *testing.T) {
	if _, err := NewContainer(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestNewContainer_InvalidAzureKey(t *testing.T) {
	cfg := testConfig()
	cfg.AzureStorageAccount = "account"
	cfg.AzureStorageKey = "not base64!"

	if _, err := NewContainer(cfg); err == nil {
		t.Error("expected error for an invalid azure key")
	}
}
