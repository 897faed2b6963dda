// Package engine defines the OCR capability shared by every extraction
// backend and dispatches a request to the backend named by its selection.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go-jp-digitizer/internal/decoder"
	apperrors "go-jp-digitizer/internal/errors"
)

// Kind tags an extraction backend
type Kind string

const (
	KindLocal            Kind = "local"
	KindRemoteGenerative Kind = "remoteGenerative"
)

// DefaultLanguage is the Tesseract language used when the caller gives no hint
const DefaultLanguage = "jpn"

// ParseKind maps wire names, including the browser form values, to a kind.
// Unknown names are returned unchanged so the registry can reject them.
func ParseKind(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "local", "tesseract":
		return KindLocal
	case "remotegenerative", "geminiapi", "gemini":
		return KindRemoteGenerative
	default:
		return Kind(strings.TrimSpace(name))
	}
}

// Selection is the caller's choice of backend for one request
type Selection struct {
	Kind         Kind
	ModelName    string
	LanguageHint string
}

// Language returns the language hint or the default code
func (s Selection) Language() string {
	if lang := strings.TrimSpace(s.LanguageHint); lang != "" {
		return lang
	}
	return DefaultLanguage
}

// Result is the normalized output of an extraction. Text is "" when nothing was found.
type Result struct {
	Text       string `json:"text"`
	EngineUsed Kind   `json:"engine_used"`
}

// Engine turns a decoded image into text
type Engine interface {
	Kind() Kind
	Extract(ctx context.Context, img decoder.DecodedImage, sel Selection) (Result, error)
}

// Registry holds one engine per kind and is itself an Engine that dispatches by tag
type Registry struct {
	mu      sync.RWMutex
	engines map[Kind]Engine
}

func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[Kind]Engine, len(engines))}
	for _, e := range engines {
		r.Register(e)
	}
	return r
}

func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Kind()] = e
}

func (r *Registry) Get(kind Kind) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[kind]
	if !ok {
		return nil, apperrors.NewUnsupportedEngineError(fmt.Sprintf("unsupported OCR engine %q", kind), nil)
	}
	return e, nil
}

// Kinds lists the registered backends
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.engines))
	for k := range r.engines {
		out = append(out, k)
	}
	return out
}

// Kind is empty: the registry serves every registered kind.
func (r *Registry) Kind() Kind { return "" }

func (r *Registry) Extract(ctx context.Context, img decoder.DecodedImage, sel Selection) (Result, error) {
	e, err := r.Get(sel.Kind)
	if err != nil {
		return Result{}, err
	}
	res, err := e.Extract(ctx, img, sel)
	if err != nil {
		return Result{}, err
	}
	res.EngineUsed = e.Kind()
	return res, nil
}
