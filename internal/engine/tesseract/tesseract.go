// Package tesseract implements the local OCR engine on top of gosseract.
// Building it requires the Tesseract C library and the language data for
// every language code callers pass (jpn by default).
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"go-jp-digitizer/internal/decoder"
	"go-jp-digitizer/internal/engine"
	apperrors "go-jp-digitizer/internal/errors"

	"github.com/otiai10/gosseract/v2"
)

// client is the subset of *gosseract.Client the engine drives
type client interface {
	SetLanguage(langs ...string) error
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// Engine runs Tesseract in-process. A client is created per call because
// gosseract clients are not safe for concurrent use.
type Engine struct {
	clientFactory func() client
}

func New() *Engine {
	return &Engine{clientFactory: func() client { return gosseract.NewClient() }}
}

func (e *Engine) Kind() engine.Kind { return engine.KindLocal }

// Extract recognizes the image bytes directly, without touching the filesystem
func (e *Engine) Extract(ctx context.Context, img decoder.DecodedImage, sel engine.Selection) (engine.Result, error) {
	if len(img.Bytes) == 0 {
		return engine.Result{}, apperrors.NewInvalidInputError("image payload is empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return engine.Result{}, apperrors.NewEngineFailureError("tesseract aborted", err)
	}

	c := e.clientFactory()
	defer c.Close()

	lang := sel.Language()
	if err := c.SetLanguage(lang); err != nil {
		return engine.Result{}, apperrors.NewEngineFailureError(fmt.Sprintf("tesseract: set language %q", lang), err)
	}
	if err := c.SetImageFromBytes(img.Bytes); err != nil {
		return engine.Result{}, apperrors.NewEngineFailureError("tesseract: set image", err)
	}
	text, err := c.Text()
	if err != nil {
		return engine.Result{}, apperrors.NewEngineFailureError("tesseract: recognize text", err)
	}

	return engine.Result{
		Text:       strings.TrimSpace(text),
		EngineUsed: engine.KindLocal,
	}, nil
}
