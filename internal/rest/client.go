package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-retry"
)

const maxResponseBytes = 1 << 20

// Request names one storefront API call. Name is the metric label, Path is
// relative to the configured base URL, Out receives the envelope data.
type Request struct {
	Name   string
	Method string
	Path   string
	Body   any
	Out    any
}

// Client is the shared HTTP layer every cart operation goes through: one
// client-wide timeout, cookie-based session auth, envelope decoding, and a
// small number of retries for 5xx responses only.
type Client struct {
	base           *url.URL
	http           *http.Client
	logg           *logger.Logger
	metrics        *metrics.RequestMetrics
	maxRetries     uint
	retryDelay     time.Duration
	onUnauthorized func()
}

// Params groups the client dependencies.
type Params struct {
	Config config.APIConfig
	Logger *logger.Logger

	// Registerer may be nil; metrics become no-ops.
	Registerer prometheus.Registerer

	// OnUnauthorized fires when the backend answers 401. The embedding shell
	// is expected to redirect to Config.LoginURL; the client itself only
	// reports the error.
	OnUnauthorized func()
}

// New builds the shared API client.
func New(params Params) (*Client, error) {
	trimmed := strings.TrimSpace(params.Config.BaseURL)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "api base url is required")
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse api base url")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build cookie jar")
	}

	timeout := params.Config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logg:           params.Logger,
		metrics:        metrics.NewRequestMetrics(params.Registerer),
		maxRetries:     params.Config.MaxRetries,
		retryDelay:     params.Config.RetryDelay,
		onUnauthorized: params.OnUnauthorized,
	}, nil
}

// Do executes the request. 5xx responses are retried up to the configured
// cap; 4xx, auth failures, and transport errors are surfaced immediately.
func (c *Client) Do(ctx context.Context, req Request) error {
	started := time.Now()
	defer func() {
		c.metrics.ObserveDuration(req.Name, time.Since(started))
	}()

	var payload []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		payload = encoded
	}

	delay := c.retryDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}

	attempts := 0
	err := retry.Do(ctx, retry.WithMaxRetries(uint64(c.maxRetries), retry.NewConstant(delay)), func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			c.metrics.IncRetry(req.Name)
		}
		attemptErr := c.attempt(ctx, req, payload)
		if typed := pkgerrors.As(attemptErr); typed != nil && typed.Code() == pkgerrors.CodeServer {
			return retry.RetryableError(attemptErr)
		}
		return attemptErr
	})
	if err != nil {
		typed := pkgerrors.As(err)
		if typed == nil {
			typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected client failure")
			err = typed
		}
		c.metrics.IncFailure(req.Name, string(typed.Code()))
		lctx := c.logg.WithFields(ctx, map[string]any{
			"operation": req.Name,
			"attempts":  attempts,
		})
		c.logg.Warn(lctx, "storefront api call failed")
		if typed.Code() == pkgerrors.CodeUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	return err
}

func (c *Client) attempt(ctx context.Context, req Request, payload []byte) error {
	target := c.base.JoinPath(req.Path)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Timeouts land here too; the cart treats them like any other
		// network failure.
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, fmt.Sprintf("%s %s", req.Method, req.Path))
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "read response body")
	}

	var envelope types.Envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil {
			if resp.StatusCode >= 400 {
				return statusError(resp.StatusCode, "")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode response envelope")
		}
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, envelope.Message).WithDetails(detailsFrom(envelope.Errors))
	}
	if !envelope.Success {
		message := envelope.Message
		if message == "" {
			message = "request rejected"
		}
		return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(detailsFrom(envelope.Errors))
	}

	if req.Out == nil {
		return nil
	}
	if len(envelope.Data) == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "response envelope missing data")
	}
	return c.decodeData(ctx, envelope.Data, req.Out)
}

func statusError(status int, message string) *pkgerrors.Error {
	code := pkgerrors.FromStatus(status)
	if message == "" {
		message = pkgerrors.MetadataFor(code).PublicMessage
	}
	return pkgerrors.New(code, message)
}

func detailsFrom(fieldErrors []types.FieldError) any {
	if len(fieldErrors) == 0 {
		return nil
	}
	details := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		details[fe.Field] = fe.Message
	}
	return details
}
