// Package scheduler fires the NAV refresh on a cron schedule through asynq.
// The worker does not touch the database; it calls the refresh endpoint over
// HTTP like any other client.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/services"
)

const (
	// QueueDefault is the queue scheduled refreshes are enqueued on
	QueueDefault = "default"
	// TaskNAVRefresh is the asynq task type of a scheduled refresh
	TaskNAVRefresh = "nav:refresh"

	schedulerTokenTTL = 5 * time.Minute
)

// Identity is the principal scheduler-minted tokens carry
var Identity = models.UserIdentity{Email: "scheduler@mfb.local", UserID: "scheduler"}

// NewNAVRefreshTask builds the task the cron entry enqueues
func NewNAVRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskNAVRefresh, nil)
}

// Trigger calls the refresh endpoint
type Trigger struct {
	url        string
	httpClient *http.Client
	tokens     services.TokenService
	logger     logrus.FieldLogger
}

// NewTrigger creates a trigger that POSTs url with a freshly minted access
// token. Each call is bounded by timeout.
func NewTrigger(url string, timeout time.Duration, tokens services.TokenService, logger logrus.FieldLogger) *Trigger {
	return &Trigger{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger.WithField("component", "scheduler"),
	}
}

// Handle is the asynq handler for TaskNAVRefresh. Transport failures are
// returned as-is so asynq retries them; any HTTP reply other than 2xx or 409
// is final and wrapped in asynq.SkipRetry.
func (t *Trigger) Handle(ctx context.Context, task *asynq.Task) error {
	token, err := t.tokens.Issue(Identity, schedulerTokenTTL, false)
	if err != nil {
		return fmt.Errorf("mint scheduler token: %v: %w", err, asynq.SkipRetry)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, nil)
	if err != nil {
		return fmt.Errorf("build refresh request: %v: %w", err, asynq.SkipRetry)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.WithError(err).Warn("nav refresh request failed, will retry")
		return fmt.Errorf("nav refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var msg models.MessageResponse
	_ = json.Unmarshal(body, &msg)

	entry := t.logger.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"message": msg.Message,
	})
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		entry.Info("nav refresh triggered")
		return nil
	case resp.StatusCode == http.StatusConflict:
		entry.Info("nav refresh already running")
		return nil
	default:
		entry.Error("nav refresh reported failure")
		return fmt.Errorf("nav refresh returned status %d: %w", resp.StatusCode, asynq.SkipRetry)
	}
}
