package obs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kotoba-dev/kotoba/internal/config"
)

// Metrics tracks chat request and compaction activity. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	meterProvider *sdkmetric.MeterProvider

	requestCount    metric.Int64Counter
	tokenUsage      metric.Int64Counter
	compactedCount  metric.Int64Counter
	droppedImages   metric.Int64Counter
	droppedMessages metric.Int64Counter
	streamDuration  metric.Float64Histogram
}

// SetupMetrics builds the meter provider and instruments. Returns nil
// when metrics are disabled.
func SetupMetrics(ctx context.Context, cfg config.Metrics) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var exp sdkmetric.Exporter
	var err error
	if cfg.OTLPEndpoint != "" {
		exp, err = otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
	} else {
		exp, err = stdoutmetric.New()
	}
	if err != nil {
		return nil, fmt.Errorf("creating metrics exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exp,
		sdkmetric.WithInterval(30*time.Second),
	)
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("kotoba")

	m := &Metrics{meterProvider: provider}

	if m.requestCount, err = meter.Int64Counter(
		"chat.request.count",
		metric.WithDescription("Chat requests by status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.tokenUsage, err = meter.Int64Counter(
		"llm.token.usage",
		metric.WithDescription("LLM token usage by type"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}

	if m.compactedCount, err = meter.Int64Counter(
		"compact.request.count",
		metric.WithDescription("Requests that needed payload compaction"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.droppedImages, err = meter.Int64Counter(
		"compact.dropped.images",
		metric.WithDescription("Image blocks stripped during compaction"),
		metric.WithUnit("{block}"),
	); err != nil {
		return nil, err
	}

	if m.droppedMessages, err = meter.Int64Counter(
		"compact.dropped.messages",
		metric.WithDescription("Messages truncated during compaction"),
		metric.WithUnit("{message}"),
	); err != nil {
		return nil, err
	}

	if m.streamDuration, err = meter.Float64Histogram(
		"chat.stream.duration",
		metric.WithDescription("Wall time of streaming chat requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRequest records one chat request and its duration.
func (m *Metrics) RecordRequest(ctx context.Context, provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.requestCount.Add(ctx, 1, attrs)
	m.streamDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTokens records token usage for a completed request.
func (m *Metrics) RecordTokens(ctx context.Context, provider string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.tokenUsage.Add(ctx, int64(inputTokens), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("type", "input"),
	))
	m.tokenUsage.Add(ctx, int64(outputTokens), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("type", "output"),
	))
}

// RecordCompaction records the outcome of one compaction pass.
func (m *Metrics) RecordCompaction(ctx context.Context, droppedImages, droppedMessages int) {
	if m == nil {
		return
	}
	m.compactedCount.Add(ctx, 1)
	if droppedImages > 0 {
		m.droppedImages.Add(ctx, int64(droppedImages))
	}
	if droppedMessages > 0 {
		m.droppedMessages.Add(ctx, int64(droppedMessages))
	}
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.meterProvider == nil {
		return nil
	}
	return m.meterProvider.Shutdown(ctx)
}
