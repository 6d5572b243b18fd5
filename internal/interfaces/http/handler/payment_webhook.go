package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bicicare/invoicebridge/internal/interfaces/http/dto"
	"github.com/bicicare/invoicebridge/internal/interfaces/http/middleware"
)

// PaymentWebhookHandler receives payment-completed notifications. It only
// acknowledges them; invoicing happens in the daily sync.
type PaymentWebhookHandler struct {
	BaseHandler
}

// NewPaymentWebhookHandler creates a new PaymentWebhookHandler
func NewPaymentWebhookHandler() *PaymentWebhookHandler {
	return &PaymentWebhookHandler{}
}

// PaymentCompleted handles POST /payment-completed with form fields id and
// the optional amount.
func (h *PaymentWebhookHandler) PaymentCompleted(c *gin.Context) {
	var req dto.PaymentCompletedRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	fields := []zap.Field{zap.String("payment_id", req.ID)}
	if req.Amount != nil {
		fields = append(fields, zap.String("amount", *req.Amount))
	}
	h.log(c).Info("Payment completed webhook received", fields...)

	c.JSON(http.StatusOK, dto.PaymentCompletedResponse{
		Status: "received",
		ID:     req.ID,
		Amount: req.Amount,
	})
}
