package sportapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/riskibarqy/team-reconciler/internal/platform/logging"
	"github.com/riskibarqy/team-reconciler/internal/platform/resilience"
	"github.com/riskibarqy/team-reconciler/internal/usecase"
)

const (
	defaultTimeout     = 20 * time.Second
	defaultMinInterval = 250 * time.Millisecond
	retryBackoffBase   = 500 * time.Millisecond
	maxResponseBytes   = 6 << 20
)

var tokenParamRegex = regexp.MustCompile(`(api_token|key)=[^&\s"']+`)
var errProviderTransient = crerr.New("provider transient failure")
var errStatusNotFound = crerr.New("provider resource not found")

// ClientConfig configures the HTTP core shared by both provider clients.
type ClientConfig struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string
	TokenParam string
	Timeout    time.Duration
	MaxRetries int
	// MinInterval is the minimum delay between calls to this provider.
	// Rate limiting is per provider so one slow source never starves the other.
	MinInterval    time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	tokenParam     string
	maxRetries     int
	limiter        *rate.Limiter
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func newClient(cfg ClientConfig) *client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}

	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = defaultMinInterval
	}

	tokenParam := strings.TrimSpace(cfg.TokenParam)
	if tokenParam == "" {
		tokenParam = "api_token"
	}

	return &client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:          strings.TrimSpace(cfg.Token),
		tokenParam:     tokenParam,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		limiter:        rate.NewLimiter(rate.Every(minInterval), 1),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(cfg.CircuitBreaker),
		circuitEnabled: cfg.CircuitBreaker.Enabled,
	}
}

func (c *client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "provider circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: provider is temporarily unavailable", usecase.ErrTransient)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	if c.token != "" {
		values.Set(c.tokenParam, c.token)
	}

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	key := path + "?" + values.Encode()
	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errProviderTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		switch {
		case crerr.Is(err, errStatusNotFound):
			return fmt.Errorf("%w: %s", usecase.ErrNotFound, redactTokenParam(path))
		case crerr.Is(err, errProviderTransient):
			return fmt.Errorf("%w: %v", usecase.ErrTransient, err)
		default:
			return err
		}
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}

	return nil
}

// executeRequest sends the request with the per-provider rate gate and an
// exponential backoff retry loop over transient failures.
func (c *client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = crerr.Wrapf(errProviderTransient, "send request: %s", redactTokenParam(err.Error()))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = crerr.Wrapf(errProviderTransient, "read response body: %v", readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusNotFound:
				return nil, errStatusNotFound
			case isRetryableStatus(resp.StatusCode):
				lastErr = crerr.Wrapf(errProviderTransient, "provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			default:
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}

		backoff := retryBackoffBase << attempt
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = crerr.Wrap(errProviderTransient, "provider request failed")
	}
	c.logger.WarnContext(ctx, "provider request failed", "url", redactTokenParam(fullURL), "error", lastErr)
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func abbreviateBody(raw []byte) string {
	body := strings.TrimSpace(string(raw))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return redactTokenParam(body)
}

func redactTokenParam(value string) string {
	return tokenParamRegex.ReplaceAllString(value, "$1=***")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
