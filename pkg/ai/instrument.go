package ai

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "algogenius",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of generative backend requests",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
	}, []string{"schema", "model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "algogenius",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of failed generative backend requests by error kind",
	}, []string{"schema", "model", "kind"})

	aiTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "algogenius",
		Subsystem: "ai",
		Name:      "tokens_total",
		Help:      "Tokens consumed by generative backend requests",
	}, []string{"schema", "model", "direction"})
)

type instrumentedProvider struct {
	inner  Provider
	tracer trace.Tracer
	logger zerolog.Logger
}

// WithInstrumentation records metrics, traces and debug logs for every call.
func WithInstrumentation(p Provider, logger zerolog.Logger) Provider {
	return &instrumentedProvider{
		inner:  p,
		tracer: otel.Tracer("github.com/noah-isme/algogenius-api/pkg/ai"),
		logger: logger.With().Str("component", "ai_provider").Logger(),
	}
}

func (p *instrumentedProvider) Generate(parent context.Context, req Request) (*Response, error) {
	schema := "text"
	if req.Schema != nil {
		schema = req.Schema.Name
	}
	model := p.inner.ModelID()

	ctx, span := p.tracer.Start(parent, "ai.generate", trace.WithAttributes(
		attribute.String("ai.schema", schema),
		attribute.String("ai.model", model),
	))
	defer span.End()

	start := time.Now()
	resp, err := p.inner.Generate(ctx, req)
	elapsed := time.Since(start)
	aiDuration.WithLabelValues(schema, model).Observe(elapsed.Seconds())

	if err != nil {
		kind := "generation"
		if IsValidationError(err) {
			kind = "validation"
		}
		aiFailures.WithLabelValues(schema, model, kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn().Err(err).Str("schema", schema).Str("model", model).Dur("elapsed", elapsed).Msg("generation failed")
		return nil, err
	}

	aiTokens.WithLabelValues(schema, model, "input").Add(float64(resp.Usage.InputTokens))
	aiTokens.WithLabelValues(schema, model, "output").Add(float64(resp.Usage.OutputTokens))
	p.logger.Debug().Str("schema", schema).Str("model", resp.Model).Dur("elapsed", elapsed).Int("tokens", resp.Usage.TotalTokens).Msg("generation completed")

	return resp, nil
}

func (p *instrumentedProvider) ModelID() string {
	return p.inner.ModelID()
}
