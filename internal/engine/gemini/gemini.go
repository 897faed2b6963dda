// Package gemini implements the remote generative OCR engine.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"go-jp-digitizer/internal/decoder"
	"go-jp-digitizer/internal/engine"
	apperrors "go-jp-digitizer/internal/errors"
	"go-jp-digitizer/internal/llm"

	"github.com/google/generative-ai-go/genai"
)

// ExtractInstruction precedes the inlined image in every request
const ExtractInstruction = "Extract all text from this image in Japanese:"

type Engine struct {
	credential string
	gen        llm.Generator
}

// New takes the process-wide credential explicitly; an empty credential makes every call fail fast.
func New(credential string, gen llm.Generator) *Engine {
	return &Engine{
		credential: strings.TrimSpace(credential),
		gen:        gen,
	}
}

func (e *Engine) Kind() engine.Kind { return engine.KindRemoteGenerative }

// Extract sends the image to the selected model once; no retry
func (e *Engine) Extract(ctx context.Context, img decoder.DecodedImage, sel engine.Selection) (engine.Result, error) {
	if e.credential == "" {
		return engine.Result{}, apperrors.NewMissingCredentialError(
			"Gemini API key not found; set the GEMINI_API_KEY environment variable", nil)
	}
	model := strings.TrimSpace(sel.ModelName)
	if model == "" {
		return engine.Result{}, apperrors.NewRemoteFailureError("gemini: model name is required", nil)
	}
	if len(img.Bytes) == 0 {
		return engine.Result{}, apperrors.NewInvalidInputError("image payload is empty", nil)
	}

	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = decoder.SniffMIME(img.Bytes)
	}

	text, err := e.gen.Generate(ctx, model,
		genai.Text(ExtractInstruction),
		&genai.Blob{MIMEType: mimeType, Data: img.Bytes},
	)
	if err != nil {
		return engine.Result{}, apperrors.NewRemoteFailureError(fmt.Sprintf("gemini OCR with model %q failed", model), err)
	}

	return engine.Result{
		Text:       strings.TrimSpace(text),
		EngineUsed: engine.KindRemoteGenerative,
	}, nil
}
