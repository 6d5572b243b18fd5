package dto

// PaymentCompletedRequest is the form posted by the payment webhook
type PaymentCompletedRequest struct {
	ID     string  `form:"id" binding:"required"`
	Amount *string `form:"amount"`
}

// PaymentCompletedResponse acknowledges a payment webhook
type PaymentCompletedResponse struct {
	Status string  `json:"status"`
	ID     string  `json:"id"`
	Amount *string `json:"amount"`
}

// SyncRequest holds the query of a manual sync
type SyncRequest struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// SyncResultResponse is one booking's invoicing outcome
type SyncResultResponse struct {
	OrderReference string `json:"order_reference"`
	Success        bool   `json:"success"`
	AlreadyExisted bool   `json:"already_existed"`
	InvoiceID      string `json:"invoice_id,omitempty"`
	Step           string `json:"step,omitempty"`
	Message        string `json:"message,omitempty"`
}

// SyncReportResponse summarises a sync run
type SyncReportResponse struct {
	RunID      string               `json:"run_id"`
	Day        string               `json:"day"`
	Selected   int                  `json:"selected"`
	Created    int                  `json:"created"`
	Existing   int                  `json:"existing"`
	Failed     int                  `json:"failed"`
	DurationMS int64                `json:"duration_ms"`
	Results    []SyncResultResponse `json:"results"`
}
