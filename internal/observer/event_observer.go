package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType represents a pipeline state transition
type EventType string

const (
	Decoding    EventType = "decoding"
	Extracting  EventType = "extracting"
	Translating EventType = "translating"
	Done        EventType = "done"
	Failed      EventType = "failed"
)

// PipelineEvent is published on every state transition of one request
type PipelineEvent struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
	Operation string        `json:"operation"`
	Engine    string        `json:"engine,omitempty"`
	Duration  time.Duration `json:"duration"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PipelineEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PipelineEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	fields := logrus.Fields{
		"event_type": event.Type,
		"operation":  event.Operation,
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Engine != "" {
		fields["engine"] = event.Engine
	}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}
	if event.ErrorKind != "" {
		fields["error_kind"] = event.ErrorKind
		fields["error"] = event.Message
	}

	entry := o.logger.WithFields(fields)
	switch event.Type {
	case Done:
		entry.Info("Pipeline completed")
	case Failed:
		entry.Warn("Pipeline failed")
	default:
		entry.Debug("Pipeline stage started")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver counts finished requests per operation and engine
type MetricsObserver struct {
	mu                  sync.RWMutex
	started             map[string]int64
	succeeded           map[string]int64
	failed              map[string]int64
	failuresByKind      map[string]int64
	totalProcessingTime time.Duration
}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		started:        make(map[string]int64),
		succeeded:      make(map[string]int64),
		failed:         make(map[string]int64),
		failuresByKind: make(map[string]int64),
	}
}

func metricsKey(event PipelineEvent) string {
	if event.Engine == "" {
		return event.Operation
	}
	return event.Operation + ":" + event.Engine
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Type {
	case Decoding:
		o.started[event.Operation]++
	case Translating:
		o.started[event.Operation]++
	case Done:
		o.succeeded[metricsKey(event)]++
		o.totalProcessingTime += event.Duration
	case Failed:
		o.failed[metricsKey(event)]++
		o.failuresByKind[event.ErrorKind]++
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Started           map[string]int64 `json:"started"`
	Succeeded         map[string]int64 `json:"succeeded"`
	Failed            map[string]int64 `json:"failed"`
	FailuresByKind    map[string]int64 `json:"failures_by_kind"`
	AvgProcessingTime string           `json:"avg_processing_time"`
}

func (o *MetricsObserver) GetMetrics() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var successes int64
	for _, n := range o.succeeded {
		successes += n
	}
	avg := time.Duration(0)
	if successes > 0 {
		avg = o.totalProcessingTime / time.Duration(successes)
	}

	return Snapshot{
		Started:           copyCounts(o.started),
		Succeeded:         copyCounts(o.succeeded),
		Failed:            copyCounts(o.failed),
		FailuresByKind:    copyCounts(o.failuresByKind),
		AvgProcessingTime: avg.String(),
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	async     bool
}

// NewEventPublisher creates a publisher that notifies observers concurrently
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
		async:     true,
	}
}

// NewSyncEventPublisher notifies observers on the caller's goroutine, in order
func NewSyncEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

func (p *EventPublisher) NotifyObservers(ctx context.Context, event PipelineEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		if p.async {
			go notify(ctx, observer, event)
		} else {
			notify(ctx, observer, event)
		}
	}
}

func notify(ctx context.Context, obs Observer, event PipelineEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
