// Package dune fetches stability pool yield rows from a Dune query result endpoint.
package dune

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ErrInvalidResponse marks a payload that does not match the expected row schema.
var ErrInvalidResponse = errors.New("invalid dune response")

// APRRow is one row of the stability pool average APR query.
type APRRow struct {
	CollateralType string
	APR            float64
}

// Config controls the Dune client.
type Config struct {
	APIKey   string
	RetryMax int
	Timeout  time.Duration
}

// Client fetches query results from the Dune API.
type Client struct {
	apiKey     string
	httpClient *retryablehttp.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.RetryMax
	if httpClient.RetryMax < 0 {
		httpClient.RetryMax = 0
	}
	httpClient.RetryWaitMin = 500 * time.Millisecond
	httpClient.RetryWaitMax = 3 * time.Second
	httpClient.Logger = leveledLogger{logger.Sugar()}
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.Timeout > 0 {
		httpClient.HTTPClient.Timeout = cfg.Timeout
	}

	return &Client{
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// FetchAPRRows queries queryURL with the given row limit and validates the rows.
// An empty API key skips the request and yields no rows.
func (c *Client) FetchAPRRows(ctx context.Context, queryURL string, limit int) ([]APRRow, error) {
	if c.apiKey == "" {
		c.logger.Warn("dune api key not set, skipping average apy query")
		return nil, nil
	}

	reqURL, err := withLimit(queryURL, limit)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create dune request: %w", err)
	}
	req.Header.Set("X-Dune-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("fetch dune query", zap.String("url", queryURL), zap.Int("limit", limit))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dune query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dune response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dune HTTP %d: %s", resp.StatusCode, string(body))
	}

	rows, err := parseAPRRows(body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("dune rows received", zap.Int("rows", len(rows)))
	return rows, nil
}

func withLimit(queryURL string, limit int) (string, error) {
	u, err := url.Parse(queryURL)
	if err != nil {
		return "", fmt.Errorf("parse dune url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseAPRRows(body []byte) ([]APRRow, error) {
	var payload struct {
		Result *struct {
			Rows []map[string]interface{} `json:"rows"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if payload.Result == nil {
		return nil, fmt.Errorf("%w: missing result", ErrInvalidResponse)
	}
	if len(payload.Result.Rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidResponse)
	}

	rows := make([]APRRow, 0, len(payload.Result.Rows))
	for i, raw := range payload.Result.Rows {
		collType, ok := raw["collateral_type"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: row %d: collateral_type missing or not a string", ErrInvalidResponse, i)
		}
		apr, ok := raw["apr"].(float64)
		if !ok {
			return nil, fmt.Errorf("%w: row %d: apr missing or not a number", ErrInvalidResponse, i)
		}
		rows = append(rows, APRRow{CollateralType: collType, APR: apr})
	}
	return rows, nil
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) { l.s.Errorw(msg, keysAndValues...) }
func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) { l.s.Warnw(msg, keysAndValues...) }
