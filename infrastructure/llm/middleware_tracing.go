package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedForecaster wraps vendor calls in OpenTelemetry spans.
type tracedForecaster struct {
	next     CoreForecaster
	provider string
	tracer   trace.Tracer
}

// TracingMiddleware records each vendor call as a span carrying the
// provider, model, prompt length, and token counts.
func TracingMiddleware(provider string) Middleware {
	tracer := otel.Tracer("forecast.provider")
	return func(next CoreForecaster) CoreForecaster {
		return &tracedForecaster{next: next, provider: provider, tracer: tracer}
	}
}

func (t *tracedForecaster) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, span := t.tracer.Start(ctx, "forecast.request",
		trace.WithAttributes(
			attribute.String("forecast.provider", t.provider),
			attribute.String("forecast.model", t.next.GetModel()),
			attribute.Int("forecast.prompt_chars", len(prompt)),
		),
	)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("forecast.tokens_in", tokensIn),
			attribute.Int("forecast.tokens_out", tokensOut),
		)
	}
	return response, tokensIn, tokensOut, err
}

func (t *tracedForecaster) GetModel() string  { return t.next.GetModel() }
func (t *tracedForecaster) SetModel(m string) { t.next.SetModel(m) }
