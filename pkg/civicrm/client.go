package civicrm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultPath is the AJAX REST endpoint used by API v3.
const DefaultPath = "/civicrm/ajax/rest"

// ClientOptions configures the HTTP client.
type ClientOptions struct {
	BaseURL      string
	Path         string
	APIKey       string
	SiteKey      string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client implements API over HTTP.
type Client struct {
	http    *resty.Client
	path    string
	apiKey  string
	siteKey string
	logger  *zap.Logger
}

var _ API = (*Client)(nil)

// NewClient builds a client for the CiviCRM site at opts.BaseURL.
func NewClient(opts ClientOptions) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("civicrm: base url is required")
	}
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = DefaultPath
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc.SetBaseURL(base)
	rc.SetTimeout(timeout)
	rc.SetHeaders(map[string]string{
		"Accept":           "application/json",
		"X-Requested-With": "XMLHttpRequest",
	})

	retryCount := opts.RetryCount
	if retryCount < 0 {
		retryCount = 0
	}
	wait := opts.RetryWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	maxWait := opts.RetryMaxWait
	if maxWait <= 0 {
		maxWait = 4 * time.Second
	}
	rc.SetRetryCount(retryCount)
	rc.SetRetryWaitTime(wait)
	rc.SetRetryMaxWaitTime(maxWait)
	rc.AddRetryCondition(func(r *resty.Response, err error) bool {
		if r == nil || r.Request == nil || !readOnly(r.Request.FormData.Get("action")) {
			return false
		}
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		http:    rc,
		path:    path,
		apiKey:  opts.APIKey,
		siteKey: opts.SiteKey,
		logger:  logger,
	}, nil
}

// readOnly reports whether an action can be sent again without side effects.
// Writes such as create are never retried: the site may have committed the
// first attempt before the connection failed.
func readOnly(action string) bool {
	switch strings.ToLower(action) {
	case ActionGet, ActionGetSingle, ActionGetOptions, "getcount", "getvalue", "getfields":
		return true
	}
	return false
}

// Call posts a single API v3 request. Read actions are retried on transport
// errors and 5xx responses.
func (c *Client) Call(ctx context.Context, entity, action string, params Params) (Result, error) {
	if ctx == nil {
		return nil, errors.New("civicrm: context is required")
	}
	if entity == "" || action == "" {
		return nil, errors.New("civicrm: entity and action are required")
	}
	if params == nil {
		params = Params{}
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("civicrm: %s.%s: encode params: %w", entity, action, err)
	}

	form := map[string]string{
		"entity": entity,
		"action": action,
		"json":   string(payload),
	}
	if c.apiKey != "" {
		form["api_key"] = c.apiKey
	}
	if c.siteKey != "" {
		form["key"] = c.siteKey
	}

	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(c.path)
	if err != nil {
		return nil, fmt.Errorf("civicrm: %s.%s: %w", entity, action, err)
	}
	c.logger.Debug("civicrm call",
		zap.String("entity", entity),
		zap.String("action", action),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(started)),
	)
	if resp.IsError() {
		return nil, fmt.Errorf("civicrm: %s.%s: unexpected status %s", entity, action, resp.Status())
	}

	return decodeResult(entity, action, resp.Body())
}

func decodeResult(entity, action string, body []byte) (Result, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out Result
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("civicrm: %s.%s: decode response: %w", entity, action, err)
	}
	if isError(out["is_error"]) {
		apiErr := &APIError{
			Entity:  entity,
			Action:  action,
			Message: out.String("error_message"),
			Code:    out.String("error_code"),
		}
		for k, v := range out {
			switch k {
			case "is_error", "error_message", "error_code":
				continue
			}
			if apiErr.Extra == nil {
				apiErr.Extra = make(map[string]any)
			}
			apiErr.Extra[k] = v
		}
		return nil, apiErr
	}
	return out, nil
}

func isError(v any) bool {
	switch flag := v.(type) {
	case bool:
		return flag
	case nil:
		return false
	default:
		n, ok := toInt64(flag)
		return ok && n != 0
	}
}
