package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	boardEventName   = "observability.event"
	boardEventDomain = "opsboard.tasks"
)

var tracer = otel.Tracer("opsboard/api")

// boardRequestMetrics collects timings for the board hot paths (list and
// move) and emits them once per request as a single structured log entry
// plus an otel span.
type boardRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	route  string

	start          time.Time
	fetchDuration  time.Duration
	encodeDuration time.Duration
	tasksReturned  int
	filtered       bool
	errorStage     string
}

func newBoardRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*boardRequestMetrics, context.Context) {
	m := &boardRequestMetrics{
		logger: logger,
		route:  route,
		start:  time.Now(),
	}
	spanCtx, span := tracer.Start(ctx, route, trace.WithSpanKind(trace.SpanKindServer))
	m.span = span
	return m, spanCtx
}

func (m *boardRequestMetrics) ObserveFetch(d time.Duration) {
	if d > 0 {
		m.fetchDuration = d
	}
}

func (m *boardRequestMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *boardRequestMetrics) SetTasksReturned(n int) {
	if n < 0 {
		n = 0
	}
	m.tasksReturned = n
}

func (m *boardRequestMetrics) SetFiltered(filtered bool) {
	m.filtered = filtered
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	attrs := map[string]any{
		"http.route":               m.route,
		"http.status_code":         status,
		"opsboard.tasks.total_ms":  durationToMillis(time.Since(m.start)),
		"opsboard.tasks.returned":  m.tasksReturned,
		"opsboard.tasks.filtered":  m.filtered,
		"opsboard.tasks.fetch_ms":  durationToMillis(m.fetchDuration),
		"opsboard.tasks.encode_ms": durationToMillis(m.encodeDuration),
	}
	if m.errorStage != "" {
		attrs["opsboard.tasks.err_stage"] = m.errorStage
	}

	if m.span != nil {
		m.span.SetAttributes(
			attribute.String("http.route", m.route),
			attribute.Int("http.status_code", status),
			attribute.Int("opsboard.tasks.returned", m.tasksReturned),
			attribute.Bool("opsboard.tasks.filtered", m.filtered),
		)
		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		} else if m.errorStage != "" {
			m.span.SetStatus(codes.Error, m.errorStage)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	fields := log.Fields{
		"event.name":   m.route,
		"event.domain": boardEventDomain,
		"attributes":   attrs,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info(boardEventName)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
