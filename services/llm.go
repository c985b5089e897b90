package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrUpstreamUnavailable is returned when every configured provider has been
// failing long enough that fallback content is the only option left.
var ErrUpstreamUnavailable = errors.New("all LLM providers unavailable")

// outageWindow is how long consecutive failures must persist before the
// client reports itself unavailable to callers.
const outageWindow = 90 * time.Second

// TextGenerator is the single surface the orchestration core uses to talk to
// an LLM. Implementations must be safe for concurrent use.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error)
	Name() string
}

// LLMClient fans a request out to an ordered provider chain (primary first)
// with a shared token bucket, per-call timeout and exponential backoff with
// jitter. It implements TextGenerator itself so callers never see the chain.
type LLMClient struct {
	providers  []TextGenerator
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int

	mu           sync.Mutex
	rng          *rand.Rand
	firstFailure time.Time
}

func NewLLMClient(cfg *AIConfig, providers ...TextGenerator) *LLMClient {
	perMin := cfg.RateLimitPerMin
	if perMin <= 0 {
		perMin = 20
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	timeout := cfg.LLMTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &LLMClient{
		providers:  providers,
		limiter:    rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin),
		timeout:    timeout,
		maxRetries: maxRetries,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LLMClient) Name() string { return "chain" }

// Unavailable reports whether the provider chain has been failing without a
// single success for longer than the outage window.
func (c *LLMClient) Unavailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.firstFailure.IsZero() && time.Since(c.firstFailure) > outageWindow
}

// GenerateText tries each provider in order, retrying transient failures
// with backoff. The shared limiter gates every attempt so the process stays
// under the configured requests-per-minute budget.
func (c *LLMClient) GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error) {
	if len(c.providers) == 0 {
		return "", fmt.Errorf("no LLM providers configured: %w", ErrUpstreamUnavailable)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		provider := c.providers[attempt%len(c.providers)]

		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := provider.GenerateText(callCtx, systemInstruction, prompt)
		cancel()

		if err == nil && strings.TrimSpace(text) != "" {
			c.recordSuccess()
			return text, nil
		}
		if err == nil {
			err = fmt.Errorf("provider %s returned empty text", provider.Name())
		}
		lastErr = err
		c.recordFailure()
		slog.Warn("LLM generation attempt failed",
			"provider", provider.Name(), "attempt", attempt+1, "error", err)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < c.maxRetries-1 {
			c.sleepBackoff(ctx, attempt)
		}
	}

	return "", fmt.Errorf("generation failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *LLMClient) recordSuccess() {
	c.mu.Lock()
	c.firstFailure = time.Time{}
	c.mu.Unlock()
}

func (c *LLMClient) recordFailure() {
	c.mu.Lock()
	if c.firstFailure.IsZero() {
		c.firstFailure = time.Now()
	}
	c.mu.Unlock()
}

// sleepBackoff waits 500ms * 2^attempt plus up to 250ms of jitter, bailing
// out early if the context is cancelled.
func (c *LLMClient) sleepBackoff(ctx context.Context, attempt int) {
	base := 500 * time.Millisecond << uint(attempt)
	if base > 8*time.Second {
		base = 8 * time.Second
	}
	c.mu.Lock()
	jitter := time.Duration(c.rng.Int63n(int64(250 * time.Millisecond)))
	c.mu.Unlock()

	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
