// Package translation turns extracted text into another language through a
// remote generative model.
package translation

import (
	"context"
	"fmt"
	"strings"

	apperrors "go-jp-digitizer/internal/errors"
	"go-jp-digitizer/internal/llm"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	DefaultSourceLanguage = "ja"
	DefaultTargetLanguage = "en"
)

// Request asks for one translation. SourceText must be non-empty; callers enforce it.
type Request struct {
	SourceText     string
	ModelName      string
	SourceLanguage string
	TargetLanguage string
}

type Result struct {
	Text string `json:"text"`
}

// Translator converts text between languages
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// GeminiTranslator sends a fixed instruction template to the requested model
type GeminiTranslator struct {
	credential string
	gen        llm.Generator
}

func NewGeminiTranslator(credential string, gen llm.Generator) *GeminiTranslator {
	return &GeminiTranslator{
		credential: strings.TrimSpace(credential),
		gen:        gen,
	}
}

// Translate returns the model response verbatim; no retry
func (t *GeminiTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if t.credential == "" {
		return Result{}, apperrors.NewMissingCredentialError(
			"Gemini API key not found; set the GEMINI_API_KEY environment variable", nil)
	}
	model := strings.TrimSpace(req.ModelName)
	if model == "" {
		return Result{}, apperrors.NewRemoteFailureError("gemini: model name is required", nil)
	}

	prompt := BuildPrompt(req)
	text, err := t.gen.Generate(ctx, model, genai.Text(prompt))
	if err != nil {
		return Result{}, apperrors.NewRemoteFailureError(fmt.Sprintf("gemini translation with model %q failed", model), err)
	}
	return Result{Text: text}, nil
}

// BuildPrompt renders the instruction template for a request
func BuildPrompt(req Request) string {
	src := LanguageName(orDefault(req.SourceLanguage, DefaultSourceLanguage))
	dst := LanguageName(orDefault(req.TargetLanguage, DefaultTargetLanguage))
	return fmt.Sprintf("Translate the following %s text to %s: %s", src, dst, req.SourceText)
}

// LanguageName renders a BCP 47 or ISO 639 code as an English language name.
// Unknown codes are returned as given.
func LanguageName(code string) string {
	code = strings.TrimSpace(code)
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
