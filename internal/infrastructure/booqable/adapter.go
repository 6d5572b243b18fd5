// Package booqable implements the order source port against the Booqable
// rental platform's JSON:API.
package booqable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
	"go.uber.org/zap"
)

// maxResponseSize is the maximum allowed response size from the API (10MB)
const maxResponseSize = 10 * 1024 * 1024

const (
	timestampLayout = "2006-01-02T15:04:05-07:00"
	orderIncludes   = "payments,lines,customer,customer.properties"
)

// Adapter implements integration.OrderSource for Booqable.
type Adapter struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ integration.OrderSource = (*Adapter)(nil)

// NewAdapter creates a new Booqable adapter with the given configuration
func NewAdapter(config Config, logger *zap.Logger) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger.Named("booqable"),
	}, nil
}

// ListPaidOrders lists paid orders created within the query window, following
// pagination until a short page or the page limit.
func (a *Adapter) ListPaidOrders(ctx context.Context, q integration.PaidOrdersQuery) (*integration.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	result := &integration.Document{}
	seen := make(map[string]bool)

	for page := 1; page <= a.config.MaxPages; page++ {
		params := url.Values{}
		params.Set("filter[payment_status]", "paid")
		params.Set("filter[created_at][gte]", q.CreatedFrom.UTC().Format(timestampLayout))
		params.Set("filter[created_at][lte]", q.CreatedTo.UTC().Format(timestampLayout))
		if q.IncludePayments {
			params.Set("include", "payments")
		}
		params.Set("page[number]", strconv.Itoa(page))
		params.Set("page[size]", strconv.Itoa(a.config.PageSize))

		var doc integration.Document
		if err := a.get(ctx, "orders", params, &doc); err != nil {
			return nil, err
		}

		fresh := 0
		for _, order := range doc.Data {
			if seen[order.ID] {
				continue
			}
			seen[order.ID] = true
			result.Data = append(result.Data, order)
			fresh++
		}
		result.Included = append(result.Included, doc.Included...)

		a.logger.Debug("Fetched order page",
			zap.Int("page", page),
			zap.Int("orders", len(doc.Data)),
			zap.Int("new", fresh),
		)

		if len(doc.Data) < a.config.PageSize || fresh == 0 {
			break
		}
		if page == a.config.MaxPages {
			a.logger.Warn("Order listing truncated at page limit", zap.Int("max_pages", a.config.MaxPages))
		}
	}

	return result, nil
}

// GetOrder fetches one order with everything needed to build a booking.
func (a *Adapter) GetOrder(ctx context.Context, orderID string) (*integration.Document, error) {
	if orderID == "" {
		return nil, integration.ErrOrderNotFound
	}
	params := url.Values{}
	params.Set("include", orderIncludes)

	var doc integration.Document
	if err := a.get(ctx, "orders/"+url.PathEscape(orderID), params, &doc); err != nil {
		return nil, err
	}
	if _, ok := doc.Primary(); !ok {
		return nil, fmt.Errorf("%w: order %s", integration.ErrOrderNotFound, orderID)
	}
	return &doc, nil
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := a.config.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("booqable: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", integration.ErrOrderSourceRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("booqable: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", integration.ErrOrderSourceAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", integration.ErrOrderNotFound, path)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d", integration.ErrOrderSourceRequestFailed, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrOrderSourceInvalidResponse, err)
	}
	return nil
}
