package container

import (
	"fmt"
	"net/http"

	"go-jp-digitizer/internal/config"
	"go-jp-digitizer/internal/engine"
	"go-jp-digitizer/internal/engine/gemini"
	"go-jp-digitizer/internal/engine/tesseract"
	"go-jp-digitizer/internal/export"
	"go-jp-digitizer/internal/llm"
	"go-jp-digitizer/internal/logger"
	"go-jp-digitizer/internal/observer"
	"go-jp-digitizer/internal/pipeline"
	"go-jp-digitizer/internal/repository"
	"go-jp-digitizer/internal/storage"
	"go-jp-digitizer/internal/translation"
	"go-jp-digitizer/internal/transport"
	"go-jp-digitizer/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	engines      *engine.Registry
	translator   translation.Translator
	events       *observer.EventPublisher
	metrics      *observer.MetricsObserver
	orchestrator *pipeline.Orchestrator
	images       repository.ImageRepository
	handler      http.Handler
}

// NewContainer builds the dependency graph from a loaded configuration
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	// The credential is read once here and handed to both remote adapters
	generator := llm.NewGeminiClient(cfg.GeminiAPIKey)
	engines := engine.NewRegistry(
		tesseract.New(),
		gemini.New(cfg.GeminiAPIKey, generator),
	)
	translator := translation.NewGeminiTranslator(cfg.GeminiAPIKey, generator)

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	orchestrator := pipeline.New(engines, translator, events)

	images, err := newImageRepository(cfg)
	if err != nil {
		return nil, err
	}

	handler := transport.NewHandler(transport.Dependencies{
		Pipeline:  orchestrator,
		Images:    images,
		Exporters: export.DefaultRegistry(),
		Metrics:   metrics,
		Config:    cfg,
	})

	if !cfg.HasGeminiCredential() {
		logger.Warn("GEMINI_API_KEY is not set; remote OCR and translation will be rejected")
	}

	return &Container{
		config:       cfg,
		engines:      engines,
		translator:   translator,
		events:       events,
		metrics:      metrics,
		orchestrator: orchestrator,
		images:       images,
		handler:      handler,
	}, nil
}

func newImageRepository(cfg *config.Config) (repository.ImageRepository, error) {
	validator := validation.NewURLValidator()
	fetcher := storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout,
		storage.WithMaxBytes(cfg.MaxRequestBodySize),
		storage.WithPublicAddressesOnly(),
		storage.WithRedirectCheck(validator.ValidateImageURL),
	)

	var blobs storage.BlobStorage
	if cfg.HasAzureStorage() {
		var err error
		blobs, err = storage.NewAzureStorage(cfg.AzureStorageAccount, cfg.AzureStorageKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize azure storage: %w", err)
		}
	}

	return repository.NewRemoteImageRepository(validator, fetcher, blobs), nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Pipeline returns the orchestrator, mostly for embedding in other hosts
func (c *Container) Pipeline() *pipeline.Orchestrator {
	return c.orchestrator
}
