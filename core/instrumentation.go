package callsession

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-interview/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	sessionsStarted, _ = meter.Int64Counter("callsession.sessions.started",
		metric.WithDescription("Voice sessions whose begin call succeeded"))
	sessionStartFailures, _ = meter.Int64Counter("callsession.sessions.start_failures",
		metric.WithDescription("Voice sessions whose begin call failed"))
	transcriptEntries, _ = meter.Int64Counter("callsession.transcript.entries",
		metric.WithDescription("Finalized transcript entries appended"))
	streamErrors, _ = meter.Int64Counter("callsession.stream.errors",
		metric.WithDescription("Errors reported by the voice session event stream"))
)
