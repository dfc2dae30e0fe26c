package runpod

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/loykin/ocrdeploy/internal/common"
)

// DefaultAPIBase is the v2 data-plane base URL.
const DefaultAPIBase = "https://api.runpod.ai/v2"

// Poll defaults for async jobs.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 300 * time.Second
)

// EndpointClient submits jobs to one deployed serverless endpoint.
type EndpointClient struct {
	rest       *resty.Client
	endpointID string
	baseURL    string
	logger     *common.Logger
}

// EndpointOption customizes an EndpointClient.
type EndpointOption func(*EndpointClient)

// WithAPIBase overrides the data-plane base URL (tests use a local server).
func WithAPIBase(u string) EndpointOption {
	return func(c *EndpointClient) { c.baseURL = u }
}

// WithRunTimeout overrides the HTTP timeout, which bounds runsync calls.
func WithRunTimeout(d time.Duration) EndpointOption {
	return func(c *EndpointClient) { c.rest.SetTimeout(d) }
}

// NewEndpointClient creates a data-plane client for the given endpoint id.
func NewEndpointClient(apiKey, endpointID string, opts ...EndpointOption) *EndpointClient {
	rest := resty.New()
	rest.SetTimeout(DefaultPollTimeout)
	rest.SetTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	rest.SetAuthToken(apiKey)

	c := &EndpointClient{
		rest:       rest,
		endpointID: endpointID,
		baseURL:    DefaultAPIBase,
		logger:     common.GetLogger().WithComponent("endpoint").WithEndpoint(endpointID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *EndpointClient) url(path string) string {
	return fmt.Sprintf("%s/%s%s", c.baseURL, c.endpointID, path)
}

func (c *EndpointClient) post(ctx context.Context, path string, body any) (gjson.Result, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.url(path))
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.IsError() {
		return gjson.Result{}, fmt.Errorf("status %d: %s",
			resp.StatusCode(), common.MaskSensitiveData(string(resp.Body())))
	}
	if !json.Valid(resp.Body()) {
		return gjson.Result{}, fmt.Errorf("invalid JSON response")
	}
	return gjson.ParseBytes(resp.Body()), nil
}

func (c *EndpointClient) get(ctx context.Context, path string) (gjson.Result, error) {
	resp, err := c.rest.R().SetContext(ctx).Get(c.url(path))
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.IsError() {
		return gjson.Result{}, fmt.Errorf("status %d: %s",
			resp.StatusCode(), common.MaskSensitiveData(string(resp.Body())))
	}
	if !json.Valid(resp.Body()) {
		return gjson.Result{}, fmt.Errorf("invalid JSON response")
	}
	return gjson.ParseBytes(resp.Body()), nil
}

// Run submits an async job and returns its id. The payload is sent as the
// handler's "input" object.
func (c *EndpointClient) Run(ctx context.Context, input any) (string, error) {
	doc, err := c.post(ctx, "/run", map[string]any{"input": input})
	if err != nil {
		return "", fmt.Errorf("run: %w", err)
	}
	id := doc.Get("id").String()
	if id == "" {
		return "", fmt.Errorf("run: no job id in response")
	}
	c.logger.Info("job submitted", "job", id, "status", doc.Get("status").String())
	return id, nil
}

// RunSync submits a job and blocks until the handler returns. The returned
// document is the handler output.
func (c *EndpointClient) RunSync(ctx context.Context, input any) (gjson.Result, error) {
	doc, err := c.post(ctx, "/runsync", map[string]any{"input": input})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("runsync: %w", err)
	}
	if status := doc.Get("status").String(); status != "" && status != StatusCompleted {
		return gjson.Result{}, fmt.Errorf("runsync: job ended with status %s: %s",
			status, doc.Get("error").String())
	}
	return doc.Get("output"), nil
}

// Status fetches the current status document of a job.
func (c *EndpointClient) Status(ctx context.Context, jobID string) (gjson.Result, error) {
	doc, err := c.get(ctx, "/status/"+jobID)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("status %s: %w", jobID, err)
	}
	return doc, nil
}

// Wait polls a job until it reaches a terminal status or the timeout expires,
// returning the handler output on completion.
func (c *EndpointClient) Wait(ctx context.Context, jobID string, interval, timeout time.Duration) (gjson.Result, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		doc, err := c.Status(ctx, jobID)
		if err != nil {
			return gjson.Result{}, err
		}
		status := doc.Get("status").String()
		c.logger.Debug("job status", "job", jobID, "status", status)

		if TerminalStatus(status) {
			if status != StatusCompleted {
				return gjson.Result{}, fmt.Errorf("job %s ended with status %s: %s",
					jobID, status, doc.Get("error").String())
			}
			return doc.Get("output"), nil
		}

		select {
		case <-ctx.Done():
			return gjson.Result{}, fmt.Errorf("job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Health returns worker and queue counts for the endpoint.
func (c *EndpointClient) Health(ctx context.Context) (*Health, error) {
	doc, err := c.get(ctx, "/health")
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	return &Health{
		WorkersIdle:    int(doc.Get("workers.idle").Int()),
		WorkersRunning: int(doc.Get("workers.running").Int()),
		JobsInQueue:    int(doc.Get("jobs.inQueue").Int()),
		JobsInProgress: int(doc.Get("jobs.inProgress").Int()),
	}, nil
}
