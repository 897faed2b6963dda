package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go-jp-digitizer/internal/config"
	"go-jp-digitizer/internal/decoder"
	"go-jp-digitizer/internal/engine"
	apperrors "go-jp-digitizer/internal/errors"
	"go-jp-digitizer/internal/export"
	"go-jp-digitizer/internal/logger"
	"go-jp-digitizer/internal/observer"
	"go-jp-digitizer/internal/pipeline"
	"go-jp-digitizer/internal/repository"
	"go-jp-digitizer/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const version = "1.0.0"

// Digitizer is the pipeline as seen by the HTTP layer
type Digitizer interface {
	Extract(ctx context.Context, req pipeline.ExtractRequest) pipeline.Outcome
	Translate(ctx context.Context, req pipeline.TranslateRequest) pipeline.Outcome
}

// Dependencies wires the handler. Images and Metrics are optional.
type Dependencies struct {
	Pipeline  Digitizer
	Images    repository.ImageRepository
	Exporters *export.Registry
	Metrics   *observer.MetricsObserver
	Config    *config.Config
}

type handler struct {
	pipeline  Digitizer
	images    repository.ImageRepository
	exporters *export.Registry
	metrics   *observer.MetricsObserver
	cfg       *config.Config
}

func NewHandler(deps Dependencies) http.Handler {
	h := &handler{
		pipeline:  deps.Pipeline,
		images:    deps.Images,
		exporters: deps.Exporters,
		metrics:   deps.Metrics,
		cfg:       deps.Config,
	}
	if h.exporters == nil {
		h.exporters = export.DefaultRegistry()
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
		requestSizeLimiter(h.cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", h.healthCheck)
	r.GET("/stats", h.stats)
	r.POST("/upload", h.upload)
	r.POST("/ocr", h.ocr)
	r.POST("/translate", h.translate)
	r.POST("/export-txt", h.exportText(export.FormatTXT))
	r.POST("/export-xlsx", h.exportText(export.FormatXLSX))

	if h.cfg.StaticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(h.cfg.StaticDir))))
	}

	return r
}

// upload keeps the browser contract: multipart form in, plain text out
func (h *handler) upload(c *gin.Context) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	asJSON := wantsJSON(c)
	fh, err := c.FormFile("image")
	if err != nil {
		h.respondError(c, formError(err, "no image uploaded"), asJSON)
		return
	}
	data, err := readFormFile(fh)
	if err != nil {
		h.respondError(c, apperrors.NewInvalidInputError("uploaded image could not be read", err), asJSON)
		return
	}

	sel := h.selection(c.PostForm("ocrEngine"), c.PostForm("geminiModel"), c.PostForm("tesseractLanguage"))
	logger.WithRequestID(requestIDFrom(c)).WithFields(logrus.Fields{
		"engine":     sel.Kind,
		"filename":   fh.Filename,
		"size_bytes": len(data),
	}).Debug("Extracting text from uploaded image")

	out := h.pipeline.Extract(ctx, pipeline.ExtractRequest{
		RequestID:    requestIDFrom(c),
		Image:        decoder.RawInput(data, fh.Header.Get("Content-Type")),
		Selection:    sel,
		ExpectedText: c.PostForm("expectedText"),
	})
	if !out.OK() {
		h.respondFailure(c, out.Failure, asJSON)
		return
	}

	if asJSON {
		c.JSON(http.StatusOK, ocrResponse(requestIDFrom(c), c.PostForm("expectedText"), out.Success, time.Since(startTime)))
		return
	}
	c.String(http.StatusOK, out.Success.Text)
}

func (h *handler) ocr(c *gin.Context) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	var req models.OCRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, formError(err, "invalid request format"), true)
		return
	}

	var input decoder.ImageInput
	switch {
	case req.Image != "":
		input = decoder.DataURIInput(req.Image)
	case req.ImageURL != "":
		if h.images == nil {
			h.respondError(c, apperrors.NewInvalidInputError("image URLs are not supported", nil), true)
			return
		}
		fetched, err := h.images.Fetch(ctx, req.ImageURL)
		if err != nil {
			h.respondError(c, err, true)
			return
		}
		input = fetched
	}

	out := h.pipeline.Extract(ctx, pipeline.ExtractRequest{
		RequestID:    requestIDFrom(c),
		Image:        input,
		Selection:    h.selection(req.OCREngine, req.GeminiModel, req.TesseractLanguage),
		ExpectedText: req.ExpectedText,
	})
	if !out.OK() {
		h.respondFailure(c, out.Failure, true)
		return
	}
	c.JSON(http.StatusOK, ocrResponse(requestIDFrom(c), req.ExpectedText, out.Success, time.Since(startTime)))
}

func (h *handler) translate(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	asJSON := wantsJSON(c)
	var req models.TranslateRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, formError(err, "invalid request format"), asJSON)
		return
	}

	out := h.pipeline.Translate(ctx, pipeline.TranslateRequest{
		RequestID:  requestIDFrom(c),
		Text:       req.Text,
		ModelName:  req.GeminiModel,
		SourceLang: req.SourceLanguage,
		TargetLang: req.TargetLanguage,
	})
	if !out.OK() {
		h.respondFailure(c, out.Failure, asJSON)
		return
	}

	if asJSON {
		c.JSON(http.StatusOK, models.TranslateResponse{
			RequestID:      requestIDFrom(c),
			TranslatedText: out.Success.Text,
		})
		return
	}
	c.String(http.StatusOK, out.Success.Text)
}

func (h *handler) exportText(format string) gin.HandlerFunc {
	return func(c *gin.Context) {
		exporter, err := h.exporters.Get(format)
		if err != nil {
			h.respondError(c, err, true)
			return
		}

		var req models.ExportRequest
		if err := c.ShouldBind(&req); err != nil {
			h.respondError(c, formError(err, "invalid request format"), true)
			return
		}
		if req.Text == "" {
			h.respondError(c, apperrors.NewInvalidInputError("no text to export", nil), true)
			return
		}

		data, err := exporter.Export(req.Text)
		if err != nil {
			_ = c.Error(apperrors.NewInternalError(fmt.Sprintf("%s export failed", format), err))
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exporter.Filename()))
		c.Data(http.StatusOK, exporter.ContentType(), data)
	}
}

func (h *handler) stats(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusOK, observer.Snapshot{})
		return
	}
	c.JSON(http.StatusOK, h.metrics.GetMetrics())
}

func (h *handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":               "available",
		"version":              version,
		"time":                 time.Now().UTC().Format(time.RFC3339),
		"gemini_configured":    h.cfg.HasGeminiCredential(),
		"default_gemini_model": h.cfg.GeminiModel,
	})
}

func (h *handler) selection(engineName, model, language string) engine.Selection {
	if language == "" {
		language = h.cfg.TesseractLanguage
	}
	return engine.Selection{
		Kind:         engine.ParseKind(engineName),
		ModelName:    model,
		LanguageHint: language,
	}
}

func ocrResponse(requestID, expected string, s *pipeline.Success, elapsed time.Duration) models.OCRResponse {
	resp := models.OCRResponse{
		RequestID:         requestID,
		Text:              s.Text,
		EngineUsed:        string(s.EngineUsed),
		ProcessingTimeSec: elapsed.Seconds(),
	}
	if s.Accuracy != nil {
		resp.Accuracy = &models.AccuracyResult{
			ExpectedText: expected,
			CER:          s.Accuracy.CER,
			WER:          s.Accuracy.WER,
			MatchScore:   s.Accuracy.MatchScore,
		}
	}
	return resp
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// formError maps binding failures, including oversized bodies, to InvalidInput
func formError(err error, message string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.NewInvalidInputError(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), err)
	}
	return apperrors.NewInvalidInputError(message, err)
}

// wantsJSON negotiates between the plain-text browser contract and JSON clients
func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEPlain, gin.MIMEJSON) == gin.MIMEJSON
}
