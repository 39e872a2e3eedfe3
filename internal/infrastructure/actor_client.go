package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// upper bound the platform accepts for waitForFinish
const maxWaitForFinish = 60 * time.Second

// implements domain.ActorClient against the actor platform REST API
type ActorHTTPClient struct {
	client       *http.Client
	baseURL      string
	token        string
	pollInterval time.Duration
	logger       *logger.Logger
	metrics      *metrics.Metrics
	rateLimiter  *rate.Limiter
}

type runEnvelope struct {
	Data domain.RunHandle `json:"data"`
}

type platformError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// creates a new actor platform client
func NewActorHTTPClient(baseURL, token string, timeout time.Duration, ratePerSecond float64, pollInterval time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *ActorHTTPClient {
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	return &ActorHTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		pollInterval: pollInterval,
		logger:       logger,
		metrics:      metrics,
		rateLimiter:  rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1),
	}
}

// Run starts an actor and waits until the run reaches a terminal status or
// timeout elapses. A run that is still going at the deadline is left running
// upstream and reported as a Timeout error.
func (c *ActorHTTPClient) Run(ctx context.Context, actorID string, input domain.RunInput, timeout time.Duration) (*domain.RunHandle, error) {
	deadline := time.Now().Add(timeout)

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, domain.NewFetchError(domain.KindUnknown, "failed to encode actor input", err)
	}

	startURL := fmt.Sprintf("%s/v2/acts/%s/runs?timeout=%d&waitForFinish=%d",
		c.baseURL, url.PathEscape(strings.ReplaceAll(actorID, "/", "~")), runTimeoutSeconds(timeout), waitSeconds(timeout))

	var env runEnvelope
	if err := c.do(ctx, "run", http.MethodPost, startURL, payload, &env); err != nil {
		return nil, err
	}
	handle := env.Data
	if handle.ID == "" {
		return nil, domain.NewFetchError(domain.KindInvalidUpstreamResponse, "actor run response has no run id", nil)
	}

	// From here on the run exists upstream; every failure carries its id.
	for !handle.Status.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return &handle, domain.NewRunError(domain.KindTimeout, handle.ID, "stopped waiting for actor run", err)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &handle, domain.NewRunError(domain.KindTimeout, handle.ID,
				fmt.Sprintf("run %s still %s after %s", handle.ID, handle.Status, timeout), nil)
		}

		if c.pollInterval > 0 {
			select {
			case <-ctx.Done():
				return &handle, domain.NewRunError(domain.KindTimeout, handle.ID, "stopped waiting for actor run", ctx.Err())
			case <-time.After(c.pollInterval):
			}
		}

		pollURL := fmt.Sprintf("%s/v2/actor-runs/%s?waitForFinish=%d", c.baseURL, url.PathEscape(handle.ID), waitSeconds(remaining))
		var polled runEnvelope
		if err := c.do(ctx, "poll", http.MethodGet, pollURL, nil, &polled); err != nil {
			kind := domain.KindOf(err)
			if !kind.IsRetryable() {
				return &handle, domain.NewRunError(kind, handle.ID, "polling actor run failed", err)
			}
			c.logger.WithContext(ctx).WithError(err).WithField("run_id", handle.ID).Warn("Polling actor run failed, polling again")
			continue
		}
		if polled.Data.Status != "" {
			handle.Status = polled.Data.Status
		}
		if polled.Data.DefaultDatasetID != "" {
			handle.DefaultDatasetID = polled.Data.DefaultDatasetID
		}
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"actor_id":   actorID,
		"run_id":     handle.ID,
		"status":     handle.Status,
		"dataset_id": handle.DefaultDatasetID,
	}).Info("Actor run finished")

	return &handle, nil
}

// ListItems fetches the items of a dataset. limit <= 0 returns everything.
func (c *ActorHTTPClient) ListItems(ctx context.Context, datasetID string, limit int) ([]domain.RawRecord, error) {
	if datasetID == "" {
		return nil, domain.NewFetchError(domain.KindInvalidUpstreamResponse, "run has no dataset id", nil)
	}

	itemsURL := fmt.Sprintf("%s/v2/datasets/%s/items?clean=true&format=json", c.baseURL, url.PathEscape(datasetID))
	if limit > 0 {
		itemsURL += fmt.Sprintf("&limit=%d", limit)
	}

	var items []domain.RawRecord
	if err := c.do(ctx, "list_items", http.MethodGet, itemsURL, nil, &items); err != nil {
		return nil, err
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"dataset_id": datasetID,
		"records":    len(items),
	}).Debug("Fetched dataset items")

	return items, nil
}

func (c *ActorHTTPClient) do(ctx context.Context, op, method, rawURL string, body []byte, out any) error {
	start := time.Now()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordActorFailure(op, string(domain.KindTimeout))
		return domain.NewFetchError(domain.KindTimeout, "rate limiter wait aborted", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		c.metrics.RecordActorFailure(op, string(domain.KindUnknown))
		return domain.NewFetchError(domain.KindUnknown, "failed to create request", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		fe := classifyTransportError(err)
		c.metrics.RecordActorFailure(op, string(fe.Kind))
		return fe
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		fe := classifyTransportError(err)
		c.metrics.RecordActorFailure(op, string(fe.Kind))
		return fe
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fe := classifyStatus(resp.StatusCode, respBody)
		c.metrics.RecordActorCall(op, fmt.Sprintf("error_%d", resp.StatusCode), duration)
		c.metrics.RecordActorFailure(op, string(fe.Kind))
		return fe
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		c.metrics.RecordActorFailure(op, string(domain.KindInvalidUpstreamResponse))
		return domain.NewFetchError(domain.KindInvalidUpstreamResponse, "failed to parse actor platform response", err)
	}

	c.metrics.RecordActorCall(op, "success", duration)
	return nil
}

func classifyTransportError(err error) *domain.FetchError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewFetchError(domain.KindTimeout, "actor platform request timed out", err)
	}
	if domain.KindOf(err) == domain.KindTimeout {
		return domain.NewFetchError(domain.KindTimeout, "actor platform request timed out", err)
	}
	return domain.NewFetchError(domain.KindNetworkError, "actor platform unreachable", err)
}

func classifyStatus(status int, body []byte) *domain.FetchError {
	var pe platformError
	_ = json.Unmarshal(body, &pe)
	detail := strings.TrimSpace(pe.Error.Message)
	if detail == "" {
		detail = http.StatusText(status)
	}
	lower := strings.ToLower(pe.Error.Type + " " + detail)

	switch {
	case status == http.StatusUnauthorized:
		return domain.NewFetchError(domain.KindInvalidCredentials, detail, nil)
	case status == http.StatusNotFound:
		return domain.NewFetchError(domain.KindActorNotFound, detail, nil)
	case status == http.StatusTooManyRequests:
		return domain.NewFetchError(domain.KindRateLimited, detail, nil)
	case status == http.StatusPaymentRequired:
		return domain.NewFetchError(domain.KindUsageQuotaExceeded, detail, nil)
	case status == http.StatusForbidden:
		if strings.Contains(lower, "usage") || strings.Contains(lower, "quota") || strings.Contains(lower, "limit") {
			return domain.NewFetchError(domain.KindUsageQuotaExceeded, detail, nil)
		}
		return domain.NewFetchError(domain.KindInvalidCredentials, detail, nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return domain.NewFetchError(domain.KindTimeout, detail, nil)
	case status >= 500:
		return domain.NewFetchError(domain.KindNetworkError, detail, nil)
	}
	return domain.NewFetchError(domain.KindUnknown, fmt.Sprintf("unexpected status %d: %s", status, detail), nil)
}

func waitSeconds(d time.Duration) int {
	if d > maxWaitForFinish {
		d = maxWaitForFinish
	}
	if d < time.Second {
		return 0
	}
	return int(d / time.Second)
}

// runTimeoutSeconds rounds up so the platform never stops a run early.
func runTimeoutSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}
