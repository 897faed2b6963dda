package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"go-jp-digitizer/internal/accuracy"
	"go-jp-digitizer/internal/decoder"
	"go-jp-digitizer/internal/engine"
	"go-jp-digitizer/internal/engine/gemini"
	apperrors "go-jp-digitizer/internal/errors"
	"go-jp-digitizer/internal/llm"
	"go-jp-digitizer/internal/observer"
	"go-jp-digitizer/internal/translation"

	"github.com/google/generative-ai-go/genai"
)

// localStub mimics Tesseract: it returns the text printed on known images and
// nothing for blank ones.
type localStub struct {
	byWidth map[int]string
	calls   int
	lang    string
}

func (s *localStub) Kind() engine.Kind { return engine.KindLocal }

func (s *localStub) Extract(ctx context.Context, img decoder.DecodedImage, sel engine.Selection) (engine.Result, error) {
	s.calls++
	s.lang = sel.Language()
	return engine.Result{Text: s.byWidth[img.Width]}, nil
}

type failingEngine struct{ err error }

func (f failingEngine) Kind() engine.Kind { return engine.KindLocal }

func (f failingEngine) Extract(ctx context.Context, img decoder.DecodedImage, sel engine.Selection) (engine.Result, error) {
	return engine.Result{}, f.err
}

type forbiddenGenerator struct{ t *testing.T }

func (g forbiddenGenerator) Generate(ctx context.Context, model string, parts ...genai.Part) (string, error) {
	g.t.Fatalf("network call attempted for model %q", model)
	return "", nil
}

type fixedGenerator struct {
	text  string
	calls int
}

func (g *fixedGenerator) Generate(ctx context.Context, model string, parts ...genai.Part) (string, error) {
	g.calls++
	return g.text, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []observer.PipelineEvent
}

func (r *eventRecorder) OnEvent(ctx context.Context, event observer.PipelineEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) GetObserverName() string { return "recorder" }

func (r *eventRecorder) types() []observer.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]observer.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func pngBytes(t *testing.T, w, h int, fill color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func dataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func newOrchestrator(t *testing.T, local engine.Engine, gen *fixedGenerator, credential string) (*Orchestrator, *eventRecorder) {
	t.Helper()
	var remoteGen llm.Generator = forbiddenGenerator{t}
	if gen != nil {
		remoteGen = gen
	}

	registry := engine.NewRegistry(local, gemini.New(credential, remoteGen))
	events := observer.NewSyncEventPublisher()
	rec := &eventRecorder{}
	events.Subscribe(rec)

	return New(registry, translation.NewGeminiTranslator(credential, remoteGen), events), rec
}

func TestExtract_LocalJapaneseText(t *testing.T) {
	local := &localStub{byWidth: map[int]string{40: "こんにちは"}}
	o, rec := newOrchestrator(t, local, nil, "")

	out := o.Extract(context.Background(), ExtractRequest{
		RequestID:    "req-a",
		Image:        decoder.DataURIInput(dataURI(pngBytes(t, 40, 12, color.White))),
		Selection:    engine.Selection{Kind: engine.KindLocal, LanguageHint: "jpn"},
		ExpectedText: "こんにちは",
	})

	if !out.OK() {
		t.Fatalf("expected success, got %+v", out.Failure)
	}
	if !accuracy.Similar("こんにちは", out.Success.Text, 0.2) {
		t.Errorf("Text = %q, want something close to こんにちは", out.Success.Text)
	}
	if out.Success.EngineUsed != engine.KindLocal {
		t.Errorf("EngineUsed = %q", out.Success.EngineUsed)
	}
	if out.Success.Accuracy == nil || out.Success.Accuracy.MatchScore != 100 {
		t.Errorf("Accuracy = %+v", out.Success.Accuracy)
	}
	if local.lang != "jpn" {
		t.Errorf("language = %q, want jpn", local.lang)
	}

	want := []observer.EventType{observer.Decoding, observer.Extracting, observer.Done}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExtract_BlankImageIsSuccess(t *testing.T) {
	local := &localStub{byWidth: map[int]string{}}
	o, _ := newOrchestrator(t, local, nil, "")

	out := o.Extract(context.Background(), ExtractRequest{
		Image:     decoder.RawInput(pngBytes(t, 1, 1, color.Transparent), "image/png"),
		Selection: engine.Selection{Kind: engine.KindLocal},
	})

	if !out.OK() {
		t.Fatalf("expected success for a blank image, got %+v", out.Failure)
	}
	if out.Success.Text != "" {
		t.Errorf("Text = %q, want empty", out.Success.Text)
	}
	if out.Success.Accuracy != nil {
		t.Error("accuracy must only be attached when expected text is given")
	}
}

func TestExtract_Idempotent(t *testing.T) {
	local := &localStub{byWidth: map[int]string{8: "テスト"}}
	o, _ := newOrchestrator(t, local, nil, "")
	req := ExtractRequest{
		Image:     decoder.RawInput(pngBytes(t, 8, 8, color.Black), ""),
		Selection: engine.Selection{Kind: engine.KindLocal},
	}

	first := o.Extract(context.Background(), req)
	second := o.Extract(context.Background(), req)
	if !first.OK() || !second.OK() {
		t.Fatalf("expected two successes, got %+v / %+v", first.Failure, second.Failure)
	}
	if first.Success.Text != second.Success.Text {
		t.Errorf("repeated extraction differs: %q vs %q", first.Success.Text, second.Success.Text)
	}
}

func TestExtract_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input decoder.ImageInput
	}{
		{"missing image", decoder.ImageInput{}},
		{"empty raw bytes", decoder.RawInput(nil, "image/png")},
		{"data uri without comma", decoder.DataURIInput("data:image/png;base64")},
		{"data uri with bad base64", decoder.DataURIInput("data:image/png;base64,@@@")},
		{"data uri with empty payload", decoder.DataURIInput("data:image/png;base64,")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &localStub{}
			o, rec := newOrchestrator(t, local, nil, "")

			out := o.Extract(context.Background(), ExtractRequest{
				Image:     tt.input,
				Selection: engine.Selection{Kind: engine.KindLocal},
			})
			if out.OK() {
				t.Fatal("expected failure")
			}
			if out.Failure.Kind != apperrors.KindInvalidInput {
				t.Errorf("Kind = %s, want InvalidInput", out.Failure.Kind)
			}
			if local.calls != 0 {
				t.Error("engine must not be called for invalid input")
			}
			types := rec.types()
			if types[len(types)-1] != observer.Failed {
				t.Errorf("last event = %s, want failed", types[len(types)-1])
			}
		})
	}
}

func TestExtract_UnsupportedEngine(t *testing.T) {
	o, _ := newOrchestrator(t, &localStub{}, nil, "key")

	out := o.Extract(context.Background(), ExtractRequest{
		Image:     decoder.RawInput(pngBytes(t, 2, 2, color.White), "image/png"),
		Selection: engine.Selection{Kind: engine.ParseKind("azureVision")},
	})
	if out.OK() || out.Failure.Kind != apperrors.KindUnsupportedEngine {
		t.Errorf("expected UnsupportedEngine, got %+v", out)
	}
}

func TestExtract_RemoteWithoutCredential(t *testing.T) {
	o, _ := newOrchestrator(t, &localStub{}, nil, "")

	out := o.Extract(context.Background(), ExtractRequest{
		Image:     decoder.RawInput(pngBytes(t, 2, 2, color.White), "image/png"),
		Selection: engine.Selection{Kind: engine.KindRemoteGenerative, ModelName: "gemini-1.5-flash"},
	})
	if out.OK() || out.Failure.Kind != apperrors.KindMissingCredential {
		t.Errorf("expected MissingCredential, got %+v", out)
	}
}

func TestExtract_EmptyModelName(t *testing.T) {
	o, _ := newOrchestrator(t, &localStub{}, nil, "test-key")

	out := o.Extract(context.Background(), ExtractRequest{
		Image:     decoder.RawInput(pngBytes(t, 2, 2, color.White), "image/png"),
		Selection: engine.Selection{Kind: engine.KindRemoteGenerative, ModelName: ""},
	})
	if out.OK() || out.Failure.Kind != apperrors.KindRemoteFailure {
		t.Errorf("expected RemoteFailure, got %+v", out)
	}
}

func TestExtract_EngineFailurePassesThrough(t *testing.T) {
	cause := apperrors.NewEngineFailureError("tesseract: language data missing", errors.New("eng.traineddata"))
	o, rec := newOrchestrator(t, failingEngine{err: cause}, nil, "")

	out := o.Extract(context.Background(), ExtractRequest{
		RequestID: "req-f",
		Image:     decoder.RawInput(pngBytes(t, 2, 2, color.White), "image/png"),
		Selection: engine.Selection{Kind: engine.KindLocal},
	})
	if out.OK() || out.Failure.Kind != apperrors.KindEngineFailure {
		t.Fatalf("expected EngineFailure, got %+v", out)
	}
	if out.Failure.Message != "tesseract: language data missing: eng.traineddata" {
		t.Errorf("Message = %q", out.Failure.Message)
	}
	if !apperrors.IsKind(out.Err(), apperrors.KindEngineFailure) {
		t.Error("Err() should keep the failure kind")
	}

	rec.mu.Lock()
	last := rec.events[len(rec.events)-1]
	rec.mu.Unlock()
	if last.ErrorKind != string(apperrors.KindEngineFailure) || last.RequestID != "req-f" {
		t.Errorf("last event = %+v", last)
	}
}

func TestTranslate_Success(t *testing.T) {
	gen := &fixedGenerator{text: "Hello"}
	o, rec := newOrchestrator(t, &localStub{}, gen, "test-key")

	out := o.Translate(context.Background(), TranslateRequest{Text: "こんにちは", ModelName: "gemini-1.5-flash"})
	if !out.OK() {
		t.Fatalf("expected success, got %+v", out.Failure)
	}
	if out.Success.Text != "Hello" {
		t.Errorf("Text = %q, want Hello", out.Success.Text)
	}
	if out.State() != StateDone {
		t.Errorf("State = %s", out.State())
	}
	if got := rec.types(); len(got) != 2 || got[0] != observer.Translating || got[1] != observer.Done {
		t.Errorf("events = %v", got)
	}
}

func TestTranslate_EmptyText(t *testing.T) {
	gen := &fixedGenerator{text: "unused"}
	o, _ := newOrchestrator(t, &localStub{}, gen, "test-key")

	for _, text := range []string{"", "   ", "\n\t"} {
		out := o.Translate(context.Background(), TranslateRequest{Text: text, ModelName: "m"})
		if out.OK() || out.Failure.Kind != apperrors.KindInvalidInput {
			t.Errorf("Translate(%q) = %+v, want InvalidInput", text, out)
		}
	}
	if gen.calls != 0 {
		t.Errorf("translator called %d times for empty text", gen.calls)
	}
}

func TestTranslate_MissingCredential(t *testing.T) {
	o, _ := newOrchestrator(t, &localStub{}, nil, "")

	out := o.Translate(context.Background(), TranslateRequest{Text: "こんにちは", ModelName: "m"})
	if out.OK() || out.Failure.Kind != apperrors.KindMissingCredential {
		t.Errorf("expected MissingCredential, got %+v", out)
	}
	if out.State() != StateFailed {
		t.Errorf("State = %s", out.State())
	}
}

func TestOrchestrator_NilEvents(t *testing.T) {
	o := New(engine.NewRegistry(&localStub{byWidth: map[int]string{3: "x"}}), nil, nil)
	out := o.Extract(context.Background(), ExtractRequest{
		Image:     decoder.RawInput(pngBytes(t, 3, 3, color.White), ""),
		Selection: engine.Selection{Kind: engine.KindLocal},
	})
	if !out.OK() || out.Success.Text != "x" {
		t.Errorf("unexpected outcome %+v", out)
	}
}
