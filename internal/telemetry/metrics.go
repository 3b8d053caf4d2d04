package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	ItemsProcessed      metric.Int64Counter
	ProcessingDuration  metric.Float64Histogram
	ChunksWritten       metric.Int64Counter
	AcquisitionFailures metric.Int64Counter
	EnrichmentFailures  metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("knowledge-ingest-platform")

	itemsProcessed, err := meter.Int64Counter(
		"ingest.items.processed",
		metric.WithDescription("Total change events processed"),
	)
	if err != nil {
		return nil, err
	}

	processingDuration, err := meter.Float64Histogram(
		"ingest.processing.duration",
		metric.WithDescription("End-to-end processing duration per item in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksWritten, err := meter.Int64Counter(
		"ingest.chunks.written",
		metric.WithDescription("Total chunks written to the store"),
	)
	if err != nil {
		return nil, err
	}

	acquisitionFailures, err := meter.Int64Counter(
		"ingest.acquisition.failures",
		metric.WithDescription("Items whose full strategy chain failed"),
	)
	if err != nil {
		return nil, err
	}

	enrichmentFailures, err := meter.Int64Counter(
		"ingest.enrichment.failures",
		metric.WithDescription("Items persisted without enrichment after a provider failure"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ItemsProcessed:      itemsProcessed,
		ProcessingDuration:  processingDuration,
		ChunksWritten:       chunksWritten,
		AcquisitionFailures: acquisitionFailures,
		EnrichmentFailures:  enrichmentFailures,
	}, nil
}

// RecordItem records the outcome of one processed change event
func (m *Metrics) RecordItem(kind, status string, durationSeconds float64) {
	attrs := []attribute.KeyValue{
		attribute.String("ingest.kind", kind),
		attribute.String("ingest.status", status),
	}

	m.ItemsProcessed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.ProcessingDuration.Record(context.Background(), durationSeconds, metric.WithAttributes(attrs...))
}

// RecordChunks records chunks written for an item
func (m *Metrics) RecordChunks(count int, strategy string) {
	m.ChunksWritten.Add(context.Background(), int64(count),
		metric.WithAttributes(attribute.String("ingest.strategy", strategy)))
}

// RecordAcquisitionFailure records an exhausted strategy chain
func (m *Metrics) RecordAcquisitionFailure(remote bool) {
	m.AcquisitionFailures.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("ingest.remote", remote)))
}

// RecordEnrichmentFailure records an item that proceeded without enrichment
func (m *Metrics) RecordEnrichmentFailure() {
	m.EnrichmentFailures.Add(context.Background(), 1)
}
