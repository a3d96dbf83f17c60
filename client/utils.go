package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// StatusError is returned when the service answers with a non 200 status.
type StatusError struct {
	Method   string
	Endpoint string
	Code     int
	Detail   string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v request to endpoint %v returned status %d", e.Method, e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%v request to endpoint %v returned status %d, detail '%v'", e.Method, e.Endpoint, e.Code, e.Detail)
}

type httpRequest struct {
	ctx         context.Context
	client      *http.Client
	method      string
	baseUrl     string
	endpoint    string
	headers     map[string]string
	queryParams map[string]string
	json        interface{}
}

func (r *httpRequest) Header(key, value string) *httpRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpRequest) Json(data interface{}) *httpRequest {
	r.json = data
	return r
}

func (r *httpRequest) Param(key, value string) *httpRequest {
	if r.queryParams == nil {
		r.queryParams = make(map[string]string)
	}
	r.queryParams[key] = value
	return r
}

func errorDetail(content []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(content, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return string(bytes.TrimSpace(content))
}

func (r *httpRequest) Process(resultHandler func(io.Reader) error) error {
	fullEndpoint, err := url.JoinPath(r.baseUrl, r.endpoint)
	if err != nil {
		return fmt.Errorf("error formatting url for endpoint %v: %w", r.endpoint, err)
	}

	var body io.Reader
	if r.json != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(r.json); err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(r.ctx, r.method, fullEndpoint, body)
	if err != nil {
		return fmt.Errorf("error creating %v request for endpoint %v: %w", r.method, r.endpoint, err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	if r.queryParams != nil {
		query := req.URL.Query()
		for k, v := range r.queryParams {
			query.Add(k, v)
		}
		req.URL.RawQuery = query.Encode()
	}

	start := time.Now()

	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending %v request to endpoint %v: %w", r.method, r.endpoint, err)
	}
	defer res.Body.Close()

	slog.Debug("sales intel client", "method", r.method, "endpoint", r.endpoint, "status", res.StatusCode, "duration", time.Since(start).String())

	if res.StatusCode != http.StatusOK {
		content, _ := io.ReadAll(res.Body)
		return &StatusError{Method: r.method, Endpoint: r.endpoint, Code: res.StatusCode, Detail: errorDetail(content)}
	}

	if resultHandler != nil {
		if err := resultHandler(res.Body); err != nil {
			return fmt.Errorf("error processing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

func (r *httpRequest) Do(result interface{}) error {
	return r.Process(func(body io.Reader) error {
		if result != nil {
			err := json.NewDecoder(body).Decode(result)
			if err != nil {
				return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
			}
		}
		return nil
	})
}

type BaseClient struct {
	baseUrl    string
	apiKey     string
	httpClient *http.Client
}

func (c *BaseClient) newRequest(ctx context.Context, method, endpoint string) *httpRequest {
	r := &httpRequest{ctx: ctx, client: c.httpClient, method: method, baseUrl: c.baseUrl, endpoint: endpoint}
	if c.apiKey != "" {
		r.Header("X-API-KEY", c.apiKey)
	}
	return r
}

func (c *BaseClient) Get(ctx context.Context, endpoint string) *httpRequest {
	return c.newRequest(ctx, "GET", endpoint)
}

func (c *BaseClient) Post(ctx context.Context, endpoint string) *httpRequest {
	return c.newRequest(ctx, "POST", endpoint)
}

func (c *BaseClient) Delete(ctx context.Context, endpoint string) *httpRequest {
	return c.newRequest(ctx, "DELETE", endpoint)
}
