// Package sheets appends confirmed purchases to a Google Sheets spreadsheet
// through the Sheets v4 REST API.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("sheets")

// DefaultBaseURL is the public Sheets API endpoint.
const DefaultBaseURL = "https://sheets.googleapis.com"

const serviceName = "sheets"

// Client implements port.PurchaseRecorder.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	spreadsheetID string
	sheetRange    string
	token         string
	cb            *gobreaker.CircuitBreaker
	bulkhead      *resilience.Bulkhead
	cfg           resilience.Config
	logger        *zap.Logger
}

// NewClient creates a spreadsheet client. sheetRange is A1 notation
// (e.g. "Compras!A:G"); rows are appended after the last filled row.
func NewClient(
	httpClient *http.Client,
	baseURL, spreadsheetID, sheetRange, token string,
	cb *gobreaker.CircuitBreaker,
	cfg resilience.Config,
	logger *zap.Logger,
) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:    httpClient,
		baseURL:       baseURL,
		spreadsheetID: spreadsheetID,
		sheetRange:    sheetRange,
		token:         token,
		cb:            cb,
		bulkhead:      resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:           cfg,
		logger:        logger,
	}
}

type appendRequest struct {
	Values [][]any `json:"values"`
}

type appendResponse struct {
	Updates struct {
		UpdatedRange string `json:"updatedRange"`
		UpdatedRows  int    `json:"updatedRows"`
	} `json:"updates"`
}

// AppendPurchase writes one row. 4xx responses are not retried; 5xx and
// transport errors are retried with backoff behind the circuit breaker.
func (c *Client) AppendPurchase(ctx context.Context, row domain.PurchaseRow) error {
	ctx, span := tracer.Start(ctx, "SheetsClient.AppendPurchase")
	defer span.End()
	span.SetAttributes(
		attribute.String("sheets.range", c.sheetRange),
		attribute.String("purchase.bank", row.Bank),
	)

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrExternalService{Service: serviceName, Err: err}
	}
	defer c.bulkhead.Release()

	body, err := json.Marshal(appendRequest{Values: [][]any{row.Values()}})
	if err != nil {
		return err
	}

	var out appendResponse
	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.doAppend(ctx, body, &out)
		})
	})
	if err != nil {
		span.RecordError(err)
		c.logger.Error("sheets: append failed",
			zap.String("range", c.sheetRange),
			zap.Bool("permanent", resilience.IsPermanent(err)),
			zap.Error(err),
		)
		return &domain.ErrExternalService{Service: serviceName, Err: err}
	}

	c.logger.Debug("sheets: append OK",
		zap.String("updated_range", out.Updates.UpdatedRange),
		zap.Int("updated_rows", out.Updates.UpdatedRows),
	)
	return nil
}

func (c *Client) appendURL() string {
	q := url.Values{}
	q.Set("valueInputOption", "USER_ENTERED")
	q.Set("insertDataOption", "INSERT_ROWS")
	return fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?%s",
		c.baseURL,
		url.PathEscape(c.spreadsheetID),
		url.PathEscape(c.sheetRange),
		q.Encode(),
	)
}

func (c *Client) doAppend(ctx context.Context, body []byte, out *appendResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.appendURL(), bytes.NewReader(body))
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := readBody(resp)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(respBody) == 0 {
			return nil
		}
		return json.Unmarshal(respBody, out)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("sheets append returned %d: %s", resp.StatusCode, string(respBody))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return resilience.Permanent(fmt.Errorf("sheets append returned %d: %s", resp.StatusCode, string(respBody)))
	default:
		return fmt.Errorf("sheets append returned %d: %s", resp.StatusCode, string(respBody))
	}
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
