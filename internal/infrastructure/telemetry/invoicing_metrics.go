package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Metric attribute keys.
var (
	AttrResult = attribute.Key("result")
	AttrStep   = attribute.Key("step")
)

// Outcome results recorded by InvoicingMetrics.
const (
	ResultCreated  = "created"
	ResultExisting = "existing"
	ResultFailed   = "failed"
)

// InvoicingMetrics tracks order selection and saga outcomes.
// A nil *InvoicingMetrics records nothing.
type InvoicingMetrics struct {
	logger *zap.Logger

	bookingsSelected *Counter
	sagaOutcomes     *Counter
	sagaDuration     *Histogram
	syncRuns         *Counter
}

// InvoicingMetricsConfig holds configuration for invoicing metrics.
type InvoicingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewInvoicingMetrics creates the invoicing instruments.
func NewInvoicingMetrics(cfg InvoicingMetricsConfig) (*InvoicingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &InvoicingMetrics{logger: logger}
	var err error

	m.bookingsSelected, err = NewCounter(cfg.Meter,
		"invoicebridge_bookings_selected_total",
		"Paid orders selected for invoicing",
		"{bookings}",
	)
	if err != nil {
		return nil, err
	}

	m.sagaOutcomes, err = NewCounter(cfg.Meter,
		"invoicebridge_invoicing_outcomes_total",
		"Invoicing saga outcomes by result and last step",
		"{outcomes}",
	)
	if err != nil {
		return nil, err
	}

	m.sagaDuration, err = NewHistogram(cfg.Meter,
		"invoicebridge_invoicing_duration_seconds",
		"Duration of one invoicing saga run",
		"s",
		RemoteCallBuckets...,
	)
	if err != nil {
		return nil, err
	}

	m.syncRuns, err = NewCounter(cfg.Meter,
		"invoicebridge_sync_runs_total",
		"Daily sync runs by result",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSelected records how many bookings a sync selected.
func (m *InvoicingMetrics) RecordSelected(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.bookingsSelected.Add(ctx, int64(count))
}

// RecordOutcome records one saga outcome and its duration.
func (m *InvoicingMetrics) RecordOutcome(ctx context.Context, result, step string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrResult.String(result), AttrStep.String(step)}
	m.sagaOutcomes.Inc(ctx, attrs...)
	m.sagaDuration.RecordDuration(ctx, d, AttrResult.String(result))
}

// RecordSyncRun records a finished sync run.
func (m *InvoicingMetrics) RecordSyncRun(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.syncRuns.Inc(ctx, AttrResult.String(result))
}
