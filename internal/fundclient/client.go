// Package fundclient talks to the RapidAPI mutual fund NAV provider.
package fundclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vikasavnish/mfbroker/internal/config"
	"github.com/vikasavnish/mfbroker/internal/models"
)

const (
	headerAPIKey  = "x-rapidapi-key"
	headerAPIHost = "x-rapidapi-host"

	maxErrorBody = 512
)

// Client fetches scheme records from the provider. It never retries.
type Client struct {
	baseURL    string
	apiKey     string
	apiHost    string
	httpClient *http.Client
	logger     logrus.FieldLogger
	group      singleflight.Group
}

// New creates a provider client from configuration
func New(cfg config.RapidAPIConfig, logger logrus.FieldLogger) *Client {
	return NewWithHTTPClient(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
}

// NewWithHTTPClient creates a provider client using the given http.Client
func NewWithHTTPClient(cfg config.RapidAPIConfig, httpClient *http.Client, logger logrus.FieldLogger) *Client {
	return &Client{
		baseURL:    cfg.URL,
		apiKey:     cfg.Key,
		apiHost:    cfg.Host,
		httpClient: httpClient,
		logger:     logger.WithField("component", "fundclient"),
	}
}

// FetchAllOpenEnded returns every open-ended scheme matching the extra filters
func (c *Client) FetchAllOpenEnded(ctx context.Context, filters map[string]string) ([]models.SchemeRecord, error) {
	query := url.Values{}
	for k, v := range filters {
		query.Set(k, v)
	}
	query.Set("Scheme_Type", models.OpenEndedSchemes)
	return c.fetch(ctx, query)
}

// FetchByFamily returns the open-ended schemes of one fund family
func (c *Client) FetchByFamily(ctx context.Context, family string) ([]models.SchemeRecord, error) {
	return c.FetchAllOpenEnded(ctx, map[string]string{"Mutual_Fund_Family": family})
}

// FetchSchemeByCode scans the open-ended list for the scheme code. A nil
// record with a nil error means the provider does not know the code.
func (c *Client) FetchSchemeByCode(ctx context.Context, code int) (*models.SchemeRecord, error) {
	records, err := c.FetchAllOpenEnded(ctx, nil)
	if err != nil {
		return nil, err
	}
	return FindScheme(records, code), nil
}

// FindScheme returns the first record with the scheme code, or nil
func FindScheme(records []models.SchemeRecord, code int) *models.SchemeRecord {
	for i := range records {
		if records[i].SchemeCode == code {
			return &records[i]
		}
	}
	return nil
}

// fetch performs the single GET every public call funnels through. Identical
// concurrent queries share one upstream request, which runs detached from any
// one caller's cancellation and is bounded by the http.Client timeout.
func (c *Client) fetch(ctx context.Context, query url.Values) ([]models.SchemeRecord, error) {
	key := query.Encode()
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.do(context.WithoutCancel(ctx), query)
	})

	select {
	case <-ctx.Done():
		return nil, &APIError{Network: true, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		records := res.Val.([]models.SchemeRecord)
		if res.Shared {
			// callers may mutate their slice
			records = append([]models.SchemeRecord(nil), records...)
		}
		return records, nil
	}
}

func (c *Client) do(ctx context.Context, query url.Values) ([]models.SchemeRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set(headerAPIHost, c.apiHost)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Warn("fund data request failed")
		return nil, &APIError{Network: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Network: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"query":  req.URL.RawQuery,
		}).Warn("fund data api returned non-200")
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	var records []models.SchemeRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
	}

	c.logger.WithFields(logrus.Fields{
		"records": len(records),
		"query":   req.URL.RawQuery,
	}).Debug("fetched fund data")
	return records, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (" + strconv.Itoa(len(s)) + " bytes)"
}
