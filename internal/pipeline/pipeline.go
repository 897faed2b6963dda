// Package pipeline sequences decoding, extraction and translation for one
// request and maps every failure to a structured outcome.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go-jp-digitizer/internal/accuracy"
	"go-jp-digitizer/internal/decoder"
	"go-jp-digitizer/internal/engine"
	apperrors "go-jp-digitizer/internal/errors"
	"go-jp-digitizer/internal/observer"
	"go-jp-digitizer/internal/translation"
)

const (
	OperationExtract   = "extract"
	OperationTranslate = "translate"
)

// State of a single request
type State string

const (
	StateIdle        State = "Idle"
	StateDecoding    State = "Decoding"
	StateExtracting  State = "Extracting"
	StateTranslating State = "Translating"
	StateDone        State = "Done"
	StateFailed      State = "Failed"
)

// Success carries the produced text. Accuracy is set only when the request
// supplied an expected text.
type Success struct {
	Text       string           `json:"text"`
	EngineUsed engine.Kind      `json:"engine_used,omitempty"`
	Accuracy   *accuracy.Report `json:"accuracy,omitempty"`
}

// Failure is the structured error surfaced to the caller
type Failure struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// Outcome holds exactly one of Success or Failure
type Outcome struct {
	Success *Success `json:"success,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

func Succeeded(s Success) Outcome {
	return Outcome{Success: &s}
}

func Failed(kind apperrors.Kind, message string) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Message: message}}
}

func failedFrom(err error) Outcome {
	return Failed(apperrors.KindOf(err), apperrors.MessageOf(err))
}

func (o Outcome) OK() bool { return o.Success != nil }

// State returns the terminal state the outcome represents
func (o Outcome) State() State {
	if o.OK() {
		return StateDone
	}
	return StateFailed
}

// Err converts a failure back into an AppError; nil on success
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return apperrors.New(o.Failure.Kind, o.Failure.Message, nil)
}

type ExtractRequest struct {
	RequestID    string
	Image        decoder.ImageInput
	Selection    engine.Selection
	ExpectedText string
}

type TranslateRequest struct {
	RequestID  string
	Text       string
	ModelName  string
	SourceLang string
	TargetLang string
}

// Orchestrator owns no per-request state and is safe for concurrent use
type Orchestrator struct {
	engines    engine.Engine
	translator translation.Translator
	events     observer.Subject
}

// New builds an orchestrator. events may be nil.
func New(engines engine.Engine, translator translation.Translator, events observer.Subject) *Orchestrator {
	return &Orchestrator{
		engines:    engines,
		translator: translator,
		events:     events,
	}
}

// Extract runs Idle -> Decoding -> Extracting -> Done | Failed
func (o *Orchestrator) Extract(ctx context.Context, req ExtractRequest) Outcome {
	start := time.Now()
	engineName := string(req.Selection.Kind)
	o.publish(ctx, observer.PipelineEvent{
		Type:      observer.Decoding,
		RequestID: req.RequestID,
		Operation: OperationExtract,
		Engine:    engineName,
	})

	if req.Image.IsZero() {
		return o.finish(ctx, req.RequestID, OperationExtract, engineName, start,
			Failed(apperrors.KindInvalidInput, "no image provided"))
	}

	img, err := decoder.Decode(req.Image)
	if err != nil {
		return o.finish(ctx, req.RequestID, OperationExtract, engineName, start,
			failedFrom(apperrors.NewInvalidInputError("image could not be decoded", err)))
	}

	o.publish(ctx, observer.PipelineEvent{
		Type:      observer.Extracting,
		RequestID: req.RequestID,
		Operation: OperationExtract,
		Engine:    engineName,
	})

	res, err := o.engines.Extract(ctx, img, req.Selection)
	if err != nil {
		return o.finish(ctx, req.RequestID, OperationExtract, engineName, start, failedFrom(err))
	}

	success := Success{Text: res.Text, EngineUsed: res.EngineUsed}
	if strings.TrimSpace(req.ExpectedText) != "" {
		report := accuracy.Score(req.ExpectedText, res.Text)
		success.Accuracy = &report
	}
	return o.finish(ctx, req.RequestID, OperationExtract, engineName, start, Succeeded(success))
}

// Translate runs Idle -> Translating -> Done | Failed
func (o *Orchestrator) Translate(ctx context.Context, req TranslateRequest) Outcome {
	start := time.Now()
	o.publish(ctx, observer.PipelineEvent{
		Type:      observer.Translating,
		RequestID: req.RequestID,
		Operation: OperationTranslate,
	})

	if strings.TrimSpace(req.Text) == "" {
		return o.finish(ctx, req.RequestID, OperationTranslate, "", start,
			Failed(apperrors.KindInvalidInput, "no text provided for translation"))
	}

	res, err := o.translator.Translate(ctx, translation.Request{
		SourceText:     req.Text,
		ModelName:      req.ModelName,
		SourceLanguage: req.SourceLang,
		TargetLanguage: req.TargetLang,
	})
	if err != nil {
		return o.finish(ctx, req.RequestID, OperationTranslate, "", start, failedFrom(err))
	}
	return o.finish(ctx, req.RequestID, OperationTranslate, "", start, Succeeded(Success{Text: res.Text}))
}

func (o *Orchestrator) finish(ctx context.Context, requestID, operation, engineName string, start time.Time, out Outcome) Outcome {
	event := observer.PipelineEvent{
		Type:      observer.Done,
		RequestID: requestID,
		Operation: operation,
		Engine:    engineName,
		Duration:  time.Since(start),
	}
	if out.Success != nil && out.Success.EngineUsed != "" {
		event.Engine = string(out.Success.EngineUsed)
	}
	if out.Failure != nil {
		event.Type = observer.Failed
		event.ErrorKind = string(out.Failure.Kind)
		event.Message = out.Failure.Message
	}
	o.publish(ctx, event)
	return out
}

func (o *Orchestrator) publish(ctx context.Context, event observer.PipelineEvent) {
	if o.events == nil {
		return
	}
	o.events.NotifyObservers(ctx, event)
}
