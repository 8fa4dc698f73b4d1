package scrapejob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelscope/pkg/config"
	"reelscope/pkg/errors"
	"reelscope/pkg/logger"
	"reelscope/pkg/retry"
)

// usageLimitPhrase in a 403 body marks the provider's own monthly usage
// cap, which no retry or backoff can get past
const usageLimitPhrase = "usage hard limit exceeded"

// ProgressFunc receives fractional progress (0.0 to 1.0) during polling
type ProgressFunc func(sub float64)

// Client talks to the external scraping service: it submits runs, polls
// their status and fetches the result dataset.
type Client struct {
	httpClient *http.Client
	baseURL    string
	actorPath  string
	token      string
	job        config.JobConfig
	logger     logger.Logger
}

// NewClient creates a scraping service client from configuration
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Scrape.RequestTimeout,
		},
		baseURL: strings.TrimRight(cfg.Scrape.BaseURL, "/"),
		// The run endpoint encodes the actor owner/name separator as ~
		actorPath: strings.ReplaceAll(cfg.Scrape.ActorID, "/", "~"),
		token:     cfg.Scrape.Token,
		job:       cfg.Job,
		logger:    log,
	}
}

// Submit starts a scrape run for the query and returns its handle.
// Transient submission failures are retried; a provider usage-limit
// rejection is returned immediately as a non-retryable error.
func (c *Client) Submit(ctx context.Context, query Query) (*JobHandle, error) {
	c.logger.InfoWithFields("submitting scrape job", map[string]interface{}{
		"query":  query.Label(),
		"sample": query.SampleSize(),
	})

	handle, err := retry.DoWithResult(func() (*JobHandle, error) {
		return c.submitOnce(ctx, query)
	}, &retry.Config{
		MaxAttempts: c.job.MaxRetries,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    c.job.RetryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: ctx,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, err
	}

	c.logger.InfoWithFields("scrape job submitted", map[string]interface{}{
		"query":  query.Label(),
		"job_id": handle.ID,
	})
	return handle, nil
}

func (c *Client) submitOnce(ctx context.Context, query Query) (*JobHandle, error) {
	body, err := json.Marshal(query.Input())
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, fmt.Sprintf("failed to encode run input: %v", err), 0)
	}

	url := fmt.Sprintf("%s/acts/%s/runs", c.baseURL, c.actorPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, fmt.Sprintf("failed to create request: %v", err), 0)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		raw, _ := io.ReadAll(resp.Body)
		if strings.Contains(strings.ToLower(string(raw)), usageLimitPhrase) {
			c.logger.Error("scraping service usage limit exceeded")
			return nil, errors.New(errors.ErrorTypeServiceQuota, "service usage limit exceeded", resp.StatusCode)
		}
		return nil, errors.New(errors.ErrorTypeAuth, "access denied by scraping service", resp.StatusCode)
	}

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var envelope runEnvelope
	if err := c.decode(resp, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data.ID == "" {
		return nil, errors.New(errors.ErrorTypeParsing, "run response missing job id", resp.StatusCode)
	}

	return &JobHandle{ID: envelope.Data.ID, Status: StatusRunning}, nil
}

// Poll blocks until the job reaches a terminal status or the attempt
// budget runs out. Fractional progress is reported per attempt, capped
// at 0.9 until a terminal status is observed.
func (c *Client) Poll(ctx context.Context, handle *JobHandle, onProgress ProgressFunc) (Status, error) {
	// The external run's latency does not improve with longer waits, so
	// polling uses a fixed interval rather than exponential backoff
	backoff := &retry.FixedBackoff{Delay: c.job.PollInterval}

	for attempt := 0; attempt < c.job.MaxPollAttempts; attempt++ {
		status, err := c.status(ctx, handle.ID)
		if err != nil {
			return "", err
		}
		handle.Status = status

		if onProgress != nil {
			sub := float64(attempt) / float64(c.job.MaxPollAttempts)
			if sub > 0.9 {
				sub = 0.9
			}
			onProgress(sub)
		}

		logger.LogJobStatus(handle.ID, string(status), attempt+1)

		switch status {
		case StatusSucceeded:
			if onProgress != nil {
				onProgress(1.0)
			}
			return status, nil
		case StatusFailed, StatusAborted, StatusTimedOut:
			return status, errors.New(errors.ErrorTypeJobFailed, fmt.Sprintf("scrape job %s", status), 0)
		}

		if err := retry.Wait(ctx, backoff.NextDelay(attempt+1)); err != nil {
			return handle.Status, fmt.Errorf("polling cancelled: %w", err)
		}
	}

	return handle.Status, errors.New(errors.ErrorTypeJobTimeout,
		fmt.Sprintf("scrape job still running after %d poll attempts", c.job.MaxPollAttempts), 0)
}

// status fetches the current lifecycle state of a run
func (c *Client) status(ctx context.Context, jobID string) (Status, error) {
	url := fmt.Sprintf("%s/actor-runs/%s", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.New(errors.ErrorTypeUnknown, fmt.Sprintf("failed to create request: %v", err), 0)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return "", err
	}

	var envelope runEnvelope
	if err := c.decode(resp, &envelope); err != nil {
		return "", err
	}
	return envelope.Data.Status, nil
}

// Fetch downloads the result dataset of a successfully completed job.
// Calling it before the handle has observed StatusSucceeded is a
// contract violation.
func (c *Client) Fetch(ctx context.Context, handle *JobHandle) ([]RawItem, error) {
	if handle.Status != StatusSucceeded {
		return nil, errors.New(errors.ErrorTypeJobFailed,
			fmt.Sprintf("cannot fetch results for job in status %q", handle.Status), 0)
	}

	url := fmt.Sprintf("%s/actor-runs/%s/dataset/items", c.baseURL, handle.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, fmt.Sprintf("failed to create request: %v", err), 0)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var items []RawItem
	if err := c.decode(resp, &items); err != nil {
		return nil, err
	}

	c.logger.InfoWithFields("fetched scrape results", map[string]interface{}{
		"job_id": handle.ID,
		"items":  len(items),
	})
	return items, nil
}

// do sends the request with auth headers and logs timing
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.New(errors.ErrorTypeNetwork, fmt.Sprintf("network error: %v", err), 0)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// checkStatus maps non-200 responses onto typed errors
func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.New(errors.ErrorTypeAuth, "authentication required", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrorTypeNotFound, "resource not found", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.New(errors.ErrorTypeRateLimit, "rate limit exceeded", resp.StatusCode)
	case resp.StatusCode >= 500:
		return errors.New(errors.ErrorTypeServerError, "server error", resp.StatusCode)
	case resp.StatusCode >= 400:
		return errors.New(errors.ErrorTypeUnknown,
			fmt.Sprintf("unexpected status code: %d", resp.StatusCode), resp.StatusCode)
	}
	return nil
}

// decode reads and unmarshals a JSON response body
func (c *Client) decode(resp *http.Response, target interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(errors.ErrorTypeNetwork,
			fmt.Sprintf("failed to read response body: %v", err), resp.StatusCode)
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errors.New(errors.ErrorTypeParsing,
			fmt.Sprintf("failed to parse JSON: %v", err), resp.StatusCode)
	}
	return nil
}
