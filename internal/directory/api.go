package directory

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/prepdeck/interviewchat/internal/auth"
	"github.com/prepdeck/interviewchat/internal/infrastructure/monitoring"
	"github.com/prepdeck/interviewchat/internal/infrastructure/resilience"
	"github.com/prepdeck/interviewchat/internal/logging"
	"github.com/prepdeck/interviewchat/internal/types"
)

// APIError is a non-2xx response from the interview service. Recoverable:
// cached state is left untouched and the caller may retry.
type APIError struct {
	Operation string
	Status    int
	Body      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: remote returned %d: %s", e.Operation, e.Status, e.Body)
}

// Wire shapes for the REST collaborator.
type startRequest struct {
	UserName       string `json:"userName"`
	TargetPosition string `json:"targetPosition"`
	TargetField    string `json:"targetField"`
	ResumeSummary  string `json:"resumeSummary"`
}

type startResponse struct {
	SessionID string `json:"sessionId"`
	Message   struct {
		Content string `json:"content"`
	} `json:"message"`
}

type sessionsResponse struct {
	Sessions []types.Session `json:"sessions"`
}

type historyResponse struct {
	Messages []types.Message `json:"messages"`
}

// apiClient wraps resty with retry, rate limiting, a circuit breaker,
// and bearer-token injection.
type apiClient struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	tokens  auth.TokenSource
	log     *logging.Logger
	metrics *monitoring.Metrics
}

func newAPIClient(opts Options) *apiClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.MaxRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("User-Agent", "interviewchat/1.0").
		SetTransport(retryClient.HTTPClient.Transport)

	return &apiClient{
		resty:   client,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		breaker: resilience.New("interview-api", resilience.Settings{
			TripAfter: 5,
			Cooldown:  30 * time.Second,
		}),
		tokens:  opts.Tokens,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// call runs one authenticated request through the limiter and breaker.
// The request function receives a request with the bearer token set and
// the result target bound; it must return the response.
func (c *apiClient) call(ctx context.Context, operation string, fn func(r *resty.Request) (*resty.Response, error)) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		// No anonymous mode: refuse before touching the network.
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	c.metrics.APICalls.WithLabelValues(operation).Inc()
	err = c.breaker.Do(func() error {
		// ForceContentType: a header-sloppy server must not silently
		// yield empty result structs.
		resp, err := fn(c.resty.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeader("X-Request-ID", uuid.NewString()).
			ForceContentType("application/json"))
		if err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}
		switch {
		case resp.StatusCode() == http.StatusUnauthorized,
			resp.StatusCode() == http.StatusForbidden:
			return fmt.Errorf("%s: %w", operation, auth.ErrUnauthorized)
		case resp.IsError():
			return &APIError{
				Operation: operation,
				Status:    resp.StatusCode(),
				Body:      string(resp.Body()),
			}
		}
		return nil
	})
	if err != nil {
		c.metrics.APIErrors.WithLabelValues(operation).Inc()
	}
	return err
}

func (c *apiClient) start(ctx context.Context, profile types.Profile) (startResponse, error) {
	var out startResponse
	err := c.call(ctx, "start", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetBody(startRequest{
				UserName:       profile.UserName,
				TargetPosition: profile.TargetPosition,
				TargetField:    profile.TargetField,
				ResumeSummary:  profile.ResumeSummary,
			}).
			SetResult(&out).
			Post("/interview/start")
	})
	return out, err
}

func (c *apiClient) sessions(ctx context.Context) ([]types.Session, error) {
	var out sessionsResponse
	err := c.call(ctx, "sessions", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&out).Get("/interview/sessions")
	})
	return out.Sessions, err
}

func (c *apiClient) history(ctx context.Context, sessionID string) ([]types.Message, error) {
	var out historyResponse
	err := c.call(ctx, "history", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetResult(&out).
			SetPathParam("id", sessionID).
			Get("/interview/history/{id}")
	})
	return out.Messages, err
}

func (c *apiClient) deleteSession(ctx context.Context, sessionID string) error {
	return c.call(ctx, "delete", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetPathParam("id", sessionID).
			Delete("/interview/sessions/{id}")
	})
}
