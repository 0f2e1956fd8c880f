package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const httpErrorBodyLimit = 1024

type timingConfig struct {
	timeout           time.Duration
	rateInterval      time.Duration
	rateBurst         int
	backoffInitial    time.Duration
	backoffMax        time.Duration
	backoffMaxElapsed time.Duration
}

var defaultTiming = timingConfig{
	timeout:           10 * time.Second,
	rateInterval:      time.Second,
	rateBurst:         1,
	backoffInitial:    time.Second,
	backoffMax:        10 * time.Second,
	backoffMaxElapsed: 30 * time.Second,
}

// poster sends JSON payloads to one webhook endpoint. Deliveries are rate
// limited per source. Transient failures are retried with exponential backoff
// until the elapsed budget runs out; a Retry-After overrides the next wait.
type poster struct {
	logger      zerolog.Logger
	channel     string
	endpoint    string
	contentType string
	client      *retryablehttp.Client
	timing      timingConfig
	metrics     *metrics.Metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newPoster(logger zerolog.Logger, channel, endpoint string, s settings) *poster {
	// Retries are driven by deliver so rate limits and Retry-After are honored.
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(context.Context, *http.Response, error) (bool, error) {
		return false, nil
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: s.timing.timeout}

	return &poster{
		logger:      logger.With().Str("channel", channel).Logger(),
		channel:     channel,
		endpoint:    endpoint,
		contentType: "application/json",
		client:      client,
		timing:      s.timing,
		metrics:     s.metrics,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// deliver waits for the source's rate limit slot, then sends every payload
// in order, stopping at the first failure.
func (p *poster) deliver(ctx context.Context, source string, payloads ...[]byte) error {
	if err := p.limiter(source).Wait(ctx); err != nil {
		return err
	}

	for _, payload := range payloads {
		err := p.send(ctx, payload)
		p.metrics.ObserveNotification(p.channel, err)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *poster) limiter(source string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, ok := p.limiters[source]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Every(p.timing.rateInterval), p.timing.rateBurst)
	p.limiters[source] = limiter
	return limiter
}

func (p *poster) send(ctx context.Context, payload []byte) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.timing.backoffInitial
	policy.MaxInterval = p.timing.backoffMax
	policy.MaxElapsedTime = p.timing.backoffMaxElapsed
	policy.Reset()

	for attempt := 1; ; attempt++ {
		err := p.post(ctx, payload)
		if err == nil {
			return nil
		}

		var failure *deliveryError
		if !errors.As(err, &failure) || !failure.retryable {
			return err
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		if failure.retryAfter > 0 {
			wait = failure.retryAfter
		}

		p.logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("notification delivery failed; retrying")

		if !sleepWithContext(ctx, wait) {
			return ctx.Err()
		}
	}
}

func (p *poster) post(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.timing.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", p.channel, err)
	}
	req.Header.Set("Content-Type", p.contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &deliveryError{retryable: true, err: fmt.Errorf("%s request failed: %w", p.channel, err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, httpErrorBodyLimit))
	bodyText := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &deliveryError{
			retryable:  true,
			retryAfter: wait,
			err:        fmt.Errorf("%s rate limited: %s", p.channel, resp.Status),
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &deliveryError{retryable: true, err: fmt.Errorf("%s server error: %s", p.channel, resp.Status)}
	case bodyText != "":
		return fmt.Errorf("%s request failed: %s (%s)", p.channel, resp.Status, bodyText)
	default:
		return fmt.Errorf("%s request failed: %s", p.channel, resp.Status)
	}
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait, true
		}
	}
	return 0, false
}

func sleepWithContext(ctx context.Context, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// deliveryError marks a failed attempt that may succeed when repeated.
type deliveryError struct {
	retryable  bool
	retryAfter time.Duration
	err        error
}

func (e *deliveryError) Error() string {
	if e.retryAfter > 0 {
		return fmt.Sprintf("%v; retry after %s", e.err, e.retryAfter)
	}
	return e.err.Error()
}

func (e *deliveryError) Unwrap() error {
	return e.err
}
