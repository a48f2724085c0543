package adapters

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

type spanLoggerKey struct{}

// ZerologTracer writes spans as pairs of structured log lines.
type ZerologTracer struct {
	logger zerolog.Logger
}

func NewZerologTracer(logger zerolog.Logger) *ZerologTracer {
	return &ZerologTracer{logger: logger.With().Str("component", "trace").Logger()}
}

// StartSpan logs the span start and returns a finish func that logs its
// duration and error. Nested spans inherit the parent's fields.
func (t *ZerologTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	parent := t.fromContext(ctx)
	lc := parent.With().Str("span", name)
	for k, v := range attrs {
		lc = lc.Interface(k, v)
	}
	span := lc.Logger()
	ctx = context.WithValue(ctx, spanLoggerKey{}, span)

	start := time.Now()
	span.Debug().Msg("span start")

	return ctx, func(err error) {
		ev := span.Debug()
		if err != nil {
			ev = span.Warn().Err(err)
		}
		ev.Dur("duration", time.Since(start)).Msg("span end")
	}
}

func (t *ZerologTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	l := t.fromContext(ctx)
	ev := l.Info()
	for k, v := range attrs {
		ev = ev.Interface(k, v)
	}
	ev.Str("event", name).Msg("trace event")
}

func (t *ZerologTracer) fromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(spanLoggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return t.logger
}

// NoopTracer discards everything.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, _ string, _ map[string]any) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (NoopTracer) Event(context.Context, string, map[string]any) {}

var (
	_ ports.Tracer = (*ZerologTracer)(nil)
	_ ports.Tracer = NoopTracer{}
)
