// Package runpod is a client for the RunPod serverless platform: the GraphQL
// control plane used to manage templates and endpoints, and the v2 REST data
// plane used to submit jobs to a deployed endpoint.
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

// DefaultGraphQLURL is the control-plane endpoint. The platform authenticates
// GraphQL calls with the api_key query parameter.
const DefaultGraphQLURL = "https://api.runpod.io/graphql"

// Client talks to the RunPod GraphQL control plane.
type Client struct {
	rest       *resty.Client
	apiKey     string
	graphqlURL string
	logger     *common.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the GraphQL URL (tests point this at a local server).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.graphqlURL = u }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.rest.SetTimeout(d) }
}

// NewClient creates a control-plane client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	rest := resty.New()
	rest.SetTimeout(60 * time.Second)
	rest.SetTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12})

	c := &Client{
		rest:       rest,
		apiKey:     apiKey,
		graphqlURL: DefaultGraphQLURL,
		logger:     common.GetLogger().WithComponent("runpod"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphql posts one query and returns the parsed body. HTTP failures, non-2xx
// statuses and GraphQL-level errors all surface as errors.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]any) (gjson.Result, error) {
	payload := graphqlRequest{Query: query, Variables: variables}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("api_key", c.apiKey).
		SetBody(payload).
		Post(c.graphqlURL)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("graphql request: %w", err)
	}
	if resp.IsError() {
		return gjson.Result{}, fmt.Errorf("graphql request: status %d: %s",
			resp.StatusCode(), common.MaskSensitiveData(string(resp.Body())))
	}

	body := resp.Body()
	if !json.Valid(body) {
		return gjson.Result{}, fmt.Errorf("graphql request: invalid JSON response")
	}
	doc := gjson.ParseBytes(body)
	if errs := doc.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		return gjson.Result{}, fmt.Errorf("graphql error: %s", errs.Array()[0].Get("message").String())
	}
	return doc, nil
}
