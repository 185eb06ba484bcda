// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/shiftdesk/shiftdesk/pkg/auth"

// Refresh triggers.
const (
	TriggerTimer        = "timer"
	TriggerUnauthorized = "unauthorized"
	TriggerManual       = "manual"
)

// Refresh and retry outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	// OutcomeStale means the exchange resolved after the session changed and was discarded.
	OutcomeStale = "stale"
	// OutcomeSkipped means no exchange was needed because the session had already moved on.
	OutcomeSkipped = "skipped"
)

var (
	attrTrigger = attribute.Key("shiftdesk.refresh.trigger")
	attrOutcome = attribute.Key("shiftdesk.outcome")
	attrEvent   = attribute.Key("shiftdesk.session.event")
)

// Recorder records session-layer metrics and spans. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	tracer          trace.Tracer
	refreshTotal    metric.Int64Counter
	refreshDuration metric.Float64Histogram
	retryTotal      metric.Int64Counter
	sessionEvents   metric.Int64Counter
}

// NewRecorder creates the instruments on the given providers.
func NewRecorder(meterProvider metric.MeterProvider, tracerProvider trace.TracerProvider) (*Recorder, error) {
	meter := meterProvider.Meter(instrumentationName)

	refreshTotal, err := meter.Int64Counter(
		"shiftdesk_session_refresh_total",
		metric.WithDescription("Number of refresh exchanges by trigger and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh counter: %w", err)
	}
	refreshDuration, err := meter.Float64Histogram(
		"shiftdesk_session_refresh_duration",
		metric.WithDescription("Duration of refresh exchanges in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh duration histogram: %w", err)
	}
	retryTotal, err := meter.Int64Counter(
		"shiftdesk_gate_retry_total",
		metric.WithDescription("Number of requests replayed after an unauthorized response, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create retry counter: %w", err)
	}
	sessionEvents, err := meter.Int64Counter(
		"shiftdesk_session_events_total",
		metric.WithDescription("Number of session transitions by kind"))
	if err != nil {
		return nil, fmt.Errorf("failed to create session event counter: %w", err)
	}

	return &Recorder{
		tracer:          tracerProvider.Tracer(instrumentationName),
		refreshTotal:    refreshTotal,
		refreshDuration: refreshDuration,
		retryTotal:      retryTotal,
		sessionEvents:   sessionEvents,
	}, nil
}

// Default creates a recorder on the otel global providers.
func Default() *Recorder {
	r, err := NewRecorder(otel.GetMeterProvider(), otel.GetTracerProvider())
	if err != nil {
		return nil
	}
	return r
}

// StartRefresh starts a span for a refresh exchange. The returned function ends
// it and records the outcome.
func (r *Recorder) StartRefresh(ctx context.Context, trigger string) (context.Context, func(outcome string, err error)) {
	if r == nil {
		return ctx, func(string, error) {}
	}
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "session.refresh",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrTrigger.String(trigger)))

	return ctx, func(outcome string, err error) {
		attrs := metric.WithAttributes(attrTrigger.String(trigger), attrOutcome.String(outcome))
		r.refreshTotal.Add(ctx, 1, attrs)
		r.refreshDuration.Record(ctx, time.Since(start).Seconds(), attrs)

		span.SetAttributes(attrOutcome.String(outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Retry records a request replay after an unauthorized response.
func (r *Recorder) Retry(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.retryTotal.Add(ctx, 1, metric.WithAttributes(attrOutcome.String(outcome)))
}

// SessionEvent records a session transition.
func (r *Recorder) SessionEvent(ctx context.Context, kind string) {
	if r == nil {
		return
	}
	r.sessionEvents.Add(ctx, 1, metric.WithAttributes(attrEvent.String(kind)))
}
