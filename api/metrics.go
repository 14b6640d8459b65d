package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName        = "todo-list/api"
	itemsSpanName     = "todo.items.request"
	itemsEventName    = "todo.items.request"
	itemsEventDomain  = "todo-api"
	observabilityName = "observability.event"
)

const (
	severityInfo  = 9
	severityWarn  = 13
	severityError = 17
)

// requestMetrics records one API request as a span plus a structured log
// event. A nil *requestMetrics ignores every call.
type requestMetrics struct {
	logger          *log.Logger
	span            trace.Span
	start           time.Time
	method          string
	route           string
	backendDuration time.Duration
	itemsReturned   int
	errorStage      string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, itemsSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &requestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		method: method,
		route:  route,
	}, spanCtx
}

// ObserveBackend adds d to the time spent waiting on the storage backend.
func (m *requestMetrics) ObserveBackend(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.backendDuration += d
}

func (m *requestMetrics) SetItemsReturned(count int) {
	if m == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	m.itemsReturned = count
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if m == nil || stage == "" {
		return
	}
	m.errorStage = stage
}

// Log ends the span and emits the observability event.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	text, number := severityForStatus(status, err)
	total := durationToMillis(time.Since(m.start))

	attrs := map[string]any{
		"http.route":          m.route,
		"http.request.method": m.method,
		"http.status_code":    status,
		"todo.items.total_ms": total,
		"todo.items.returned": m.itemsReturned,
	}
	eventAttrs := []attribute.KeyValue{
		attribute.String("event.name", itemsEventName),
		attribute.String("event.domain", itemsEventDomain),
		attribute.String("severity_text", text),
		attribute.Int("severity_number", number),
		attribute.Float64("todo.items.total_ms", total),
	}
	if m.backendDuration > 0 {
		ms := durationToMillis(m.backendDuration)
		attrs["todo.items.backend_ms"] = ms
		eventAttrs = append(eventAttrs, attribute.Float64("todo.items.backend_ms", ms))
	}
	if m.errorStage != "" {
		attrs["todo.items.error_stage"] = m.errorStage
		eventAttrs = append(eventAttrs, attribute.String("todo.items.error_stage", m.errorStage))
	}
	if err != nil {
		attrs["error.message"] = err.Error()
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	sc := m.span.SpanContext()
	m.span.SetAttributes(
		attribute.String("http.route", m.route),
		attribute.String("http.request.method", m.method),
		attribute.Int("http.status_code", status),
		attribute.Int("todo.items.returned", m.itemsReturned),
	)
	if m.errorStage != "" {
		m.span.SetAttributes(attribute.String("todo.items.error_stage", m.errorStage))
	}
	m.span.AddEvent(observabilityName, trace.WithAttributes(eventAttrs...))
	if number >= severityError {
		desc := http.StatusText(status)
		if err != nil {
			desc = err.Error()
		}
		if desc == "" {
			desc = "request failed"
		}
		m.span.SetStatus(codes.Error, desc)
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      itemsEventName,
		"event.domain":    itemsEventDomain,
		"severity_text":   text,
		"severity_number": number,
		"attributes":      attrs,
	}
	if sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		fields["span_id"] = sc.SpanID().String()
	}
	m.logger.WithFields(fields).Log(levelForSeverity(number), observabilityName)
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError:
		return "ERROR", severityError
	case status >= http.StatusBadRequest:
		return "WARN", severityWarn
	case status == 0 && err != nil:
		return "ERROR", severityError
	default:
		return "INFO", severityInfo
	}
}

func levelForSeverity(number int) log.Level {
	switch {
	case number >= severityError:
		return log.ErrorLevel
	case number >= severityWarn:
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
