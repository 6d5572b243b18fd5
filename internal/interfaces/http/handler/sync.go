package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bicicare/invoicebridge/internal/application/invoicing"
	"github.com/bicicare/invoicebridge/internal/infrastructure/scheduler"
	"github.com/bicicare/invoicebridge/internal/interfaces/http/dto"
	"github.com/bicicare/invoicebridge/internal/interfaces/http/middleware"
)

const dateLayout = "2006-01-02"

// SyncRunner runs the invoicing sync for one day.
type SyncRunner interface {
	RunDay(ctx context.Context, day time.Time) (*invoicing.SyncReport, error)
}

// SyncHandler triggers a sync on demand
type SyncHandler struct {
	BaseHandler
	runner  SyncRunner
	now     func() time.Time
	timeout time.Duration
}

// NewSyncHandler creates a new SyncHandler. A nil now uses time.Now.
func NewSyncHandler(runner SyncRunner, now func() time.Time) *SyncHandler {
	if now == nil {
		now = time.Now
	}
	return &SyncHandler{runner: runner, now: now}
}

// WithTimeout bounds each manual sync. Zero leaves only the runner's own
// deadline.
func (h *SyncHandler) WithTimeout(d time.Duration) *SyncHandler {
	h.timeout = d
	return h
}

// RunSync handles POST /api/v1/sync?date=YYYY-MM-DD. Without a date it syncs
// yesterday (UTC).
func (h *SyncHandler) RunSync(c *gin.Context) {
	var req dto.SyncRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	var day time.Time
	if req.Date == "" {
		now := h.now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			h.BadRequest(c, "date must be formatted as YYYY-MM-DD")
			return
		}
		day = parsed
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.runner.RunDay(ctx, day)
	if err != nil {
		h.log(c).Error("Manual sync failed", zap.String("day", day.Format(dateLayout)), zap.Error(err))
		switch {
		case errors.Is(err, scheduler.ErrSyncInProgress):
			h.ErrorWithCode(c, dto.ErrCodeSyncInProgress, "a sync is already running")
		case errors.Is(err, scheduler.ErrSyncTimeout):
			h.ErrorWithCode(c, dto.ErrCodeTimeout, "sync timed out")
		case errors.Is(err, invoicing.ErrSyncSelectionFailed):
			h.ErrorWithCode(c, dto.ErrCodeUnavailable, "could not load paid orders")
		default:
			h.InternalError(c, "sync failed")
		}
		return
	}

	h.Success(c, toSyncReportResponse(report))
}

func toSyncReportResponse(r *invoicing.SyncReport) dto.SyncReportResponse {
	resp := dto.SyncReportResponse{
		RunID:      r.RunID.String(),
		Day:        r.Day,
		Selected:   r.Selected,
		Created:    r.Created,
		Existing:   r.Existing,
		Failed:     r.Failed,
		DurationMS: r.Duration().Milliseconds(),
		Results:    make([]dto.SyncResultResponse, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		resp.Results = append(resp.Results, dto.SyncResultResponse{
			OrderReference: res.OrderReference,
			Success:        res.Outcome.Success,
			AlreadyExisted: res.Outcome.AlreadyExisted,
			InvoiceID:      res.Outcome.InvoiceID,
			Step:           res.Outcome.Step.String(),
			Message:        res.Outcome.Message,
		})
	}
	return resp
}
