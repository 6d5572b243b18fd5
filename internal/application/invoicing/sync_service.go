package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bicicare/invoicebridge/internal/domain/booking"
	"github.com/bicicare/invoicebridge/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrSyncSelectionFailed is returned when the paid bookings of a day cannot
// be selected.
var ErrSyncSelectionFailed = errors.New("invoicing: booking selection failed")

// BookingSelector selects the bookings paid on a day.
type BookingSelector interface {
	SelectPaidOn(ctx context.Context, day time.Time) ([]booking.Booking, error)
}

// BookingProcessor invoices one booking.
type BookingProcessor interface {
	Process(ctx context.Context, b booking.Booking) booking.InvoicingOutcome
}

// BookingResult pairs a booking reference with its outcome.
type BookingResult struct {
	OrderReference string                   `json:"order_reference"`
	Outcome        booking.InvoicingOutcome `json:"outcome"`
}

// SyncReport summarises one sync run.
type SyncReport struct {
	RunID      uuid.UUID       `json:"run_id"`
	Day        string          `json:"day"`
	Selected   int             `json:"selected"`
	Created    int             `json:"created"`
	Existing   int             `json:"existing"`
	Failed     int             `json:"failed"`
	Results    []BookingResult `json:"results"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Duration returns how long the run took.
func (r *SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SyncService invoices every booking paid on a day.
type SyncService struct {
	selector    BookingSelector
	processor   BookingProcessor
	metrics     *telemetry.InvoicingMetrics
	logger      *zap.Logger
	concurrency int
}

// NewSyncService creates a new SyncService. concurrency below 1 runs bookings
// one at a time.
func NewSyncService(selector BookingSelector, processor BookingProcessor, concurrency int, metrics *telemetry.InvoicingMetrics, logger *zap.Logger) *SyncService {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		selector:    selector,
		processor:   processor,
		metrics:     metrics,
		logger:      logger.Named("sync_service"),
		concurrency: concurrency,
	}
}

// SyncDay selects the bookings paid on day and runs the invoicing saga for
// each. Results keep selection order.
func (s *SyncService) SyncDay(ctx context.Context, day time.Time) (*SyncReport, error) {
	report := &SyncReport{
		RunID:     uuid.New(),
		Day:       day.UTC().Format("2006-01-02"),
		StartedAt: time.Now(),
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "day",
		telemetry.SpanAttrDay, report.Day,
	)
	defer span.End()

	log := s.logger.With(zap.String("run_id", report.RunID.String()), zap.String("day", report.Day))
	log.Info("Starting invoicing sync")

	bookings, err := s.selector.SelectPaidOn(ctx, day)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordSyncRun(ctx, false)
		log.Error("Booking selection failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSyncSelectionFailed, err)
	}
	report.Selected = len(bookings)
	s.metrics.RecordSelected(ctx, len(bookings))

	report.Results = make([]BookingResult, len(bookings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, b := range bookings {
		g.Go(func() error {
			report.Results[i] = BookingResult{
				OrderReference: b.OrderReference,
				Outcome:        s.processor.Process(gctx, b),
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		switch {
		case !r.Outcome.Success:
			report.Failed++
			log.Warn("Booking not invoiced",
				zap.String("order_reference", r.OrderReference),
				zap.String("step", r.Outcome.Step.String()),
				zap.String("message", r.Outcome.Message),
			)
		case r.Outcome.AlreadyExisted:
			report.Existing++
		default:
			report.Created++
		}
	}
	report.FinishedAt = time.Now()
	s.metrics.RecordSyncRun(ctx, true)

	log.Info("Invoicing sync finished",
		zap.Int("selected", report.Selected),
		zap.Int("created", report.Created),
		zap.Int("existing", report.Existing),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration()),
	)
	return report, nil
}
