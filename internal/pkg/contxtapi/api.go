package contxtapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-openapi/runtime"
	"github.com/go-openapi/runtime/middleware/header"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jake-scott/contxt-cli/internal/pkg/auth"
	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

const (
	defaultRetries       = 3
	defaultRetryInterval = time.Millisecond * 100
)

// statuses worth another attempt
var retryStatuses = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusGatewayTimeout:      true,
}

// HTTPError is returned for non-2xx responses
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

// API is a JSON REST API at baseURL, optionally authenticated with bearer
// tokens for the given client and audience
type API struct {
	baseURL       string
	clientID      string
	audience      string
	tokens        auth.TokenProvider
	timeout       time.Duration
	retries       uint64
	retryInterval time.Duration
	client        *http.Client
}

func NewAPI(baseURL string) *API {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &API{
		baseURL:       baseURL,
		retries:       defaultRetries,
		retryInterval: defaultRetryInterval,
		client:        &http.Client{},
	}
}

func (c *API) WithTokenProvider(tokens auth.TokenProvider, clientID string, audience string) *API {
	nc := *c
	nc.tokens = tokens
	nc.clientID = clientID
	nc.audience = audience
	return &nc
}

func (c *API) WithTimeout(d time.Duration) *API {
	nc := *c
	nc.timeout = d
	return &nc
}

func (c *API) WithRetries(n uint64, interval time.Duration) *API {
	nc := *c
	nc.retries = n
	nc.retryInterval = interval
	return &nc
}

func (c *API) WithHTTPClient(client *http.Client) *API {
	nc := *c
	nc.client = client
	return &nc
}

// BaseURL returns the API root, always ending in a slash
func (c *API) BaseURL() string {
	return c.baseURL
}

func (c *API) makeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	var cancel context.CancelFunc = func() {}
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	return ctx, cancel
}

func (c *API) url(uri string, params url.Values) string {
	u := c.baseURL + strings.TrimPrefix(uri, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Get sends a GET request and decodes the JSON response into out
func (c *API) Get(ctx context.Context, uri string, params url.Values, out interface{}) error {
	return c.Do(ctx, http.MethodGet, uri, params, nil, out)
}

// Post sends body as JSON and decodes the JSON response into out
func (c *API) Post(ctx context.Context, uri string, body interface{}, out interface{}) error {
	return c.Do(ctx, http.MethodPost, uri, nil, body, out)
}

// Put sends body as JSON and decodes the JSON response into out
func (c *API) Put(ctx context.Context, uri string, body interface{}, out interface{}) error {
	return c.Do(ctx, http.MethodPut, uri, nil, body, out)
}

// Delete sends a DELETE request
func (c *API) Delete(ctx context.Context, uri string, out interface{}) error {
	return c.Do(ctx, http.MethodDelete, uri, nil, nil, out)
}

// Do executes a request, retrying transport failures and 500/502/504
// responses with exponential backoff
func (c *API) Do(ctx context.Context, method string, uri string, params url.Values, body interface{}, out interface{}) error {
	var reqBody []byte
	if body != nil {
		var err error
		if reqBody, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}

	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := c.makeContext(ctx)
	defer cancel()

	target := c.url(uri, params)
	var respBody []byte
	var respHeader http.Header

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(reqBody))
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "building request"))
		}

		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Accept", runtime.JSONMime)
		req.Header.Set("X-Request-ID", uuid.New().String())
		if reqBody != nil {
			req.Header.Set("Content-Type", runtime.JSONMime)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		startTime := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return errors.Wrapf(err, "executing %s %s", method, target)
		}
		defer resp.Body.Close()

		b, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "reading response body")
		}

		logging.Logger(ctx).Debugf("called %s %s with body %s (%s): %d", method, target, reqBody, time.Since(startTime), resp.StatusCode)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			httpErr := &HTTPError{
				Method:     method,
				URL:        target,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Message:    errorMessage(b),
			}
			if retryStatuses[resp.StatusCode] {
				return httpErr
			}
			return backoff.Permanent(httpErr)
		}

		respBody = b
		respHeader = resp.Header
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxElapsedTime = 0

	notify := func(err error, d time.Duration) {
		logging.Logger(ctx).WithError(err).Warnf("retrying %s %s in %s", method, target, d)
	}

	if err := backoff.RetryNotify(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx), notify); err != nil {
		return err
	}

	return decodeJSON(respHeader, respBody, out)
}

func (c *API) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}

	token, err := c.tokens.GetToken(ctx, c.clientID, c.audience)
	if err != nil {
		return "", errors.Wrap(err, "fetching access token")
	}
	return token, nil
}

// pull a human readable message out of an error body, if it has one
func errorMessage(body []byte) string {
	var msg struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &msg); err == nil {
		if msg.Message != "" {
			return msg.Message
		}
		if msg.Error != "" {
			return msg.Error
		}
	}

	return strings.TrimSpace(string(body))
}

func decodeJSON(h http.Header, body []byte, out interface{}) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if h.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(h, "Content-Type")
		if value != runtime.JSONMime {
			return fmt.Errorf("expected JSON response, got %s", value)
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decoding JSON response")
	}
	return nil
}
