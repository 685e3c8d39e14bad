package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/warp/meeting-engine/meeting"
)

const TracerName = "meeting-engine"

// Span names
const (
	SpanReconcile = "meetings.reconcile"
	SpanFetch     = "meetings.fetch"
	SpanAssign    = "meetings.assign"
)

// Span attribute keys
const (
	AttrFetchID     = "fetch_id"
	AttrSource      = "source"
	AttrWindowFrom  = "window.from"
	AttrWindowTo    = "window.to"
	AttrMeetings    = "meetings"
	AttrMeetingID   = "meeting_id"
	AttrRole        = "role"
	AttrDegraded    = "degraded"
	AttrAcknowledge = "acknowledged"
)

type tracer struct {
	t trace.Tracer
}

func newTracer() tracer {
	return tracer{t: otel.Tracer(TracerName)}
}

func (t tracer) startReconcile(ctx context.Context, fetchID string, w meeting.Window) (context.Context, trace.Span) {
	return t.t.Start(ctx, SpanReconcile, trace.WithAttributes(
		attribute.String(AttrFetchID, fetchID),
		attribute.String(AttrWindowFrom, w.From.String()),
		attribute.String(AttrWindowTo, w.To.String()),
	))
}

func (t tracer) startFetch(ctx context.Context, kind meeting.SourceKind, w meeting.Window) (context.Context, trace.Span) {
	return t.t.Start(ctx, SpanFetch, trace.WithAttributes(
		attribute.String(AttrSource, string(kind)),
		attribute.String(AttrWindowFrom, w.From.String()),
		attribute.String(AttrWindowTo, w.To.String()),
	))
}

func (t tracer) startAssign(ctx context.Context, meetingID string, role meeting.Role) (context.Context, trace.Span) {
	return t.t.Start(ctx, SpanAssign, trace.WithAttributes(
		attribute.String(AttrMeetingID, meetingID),
		attribute.String(AttrRole, string(role)),
	))
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
