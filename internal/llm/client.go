package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mannyrayner/C-LARA-2/internal/observability"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy returns three attempts with a 1s backoff doubling
// after every retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxRetries, InitialBackoff: time.Second, Multiplier: 2}
}

// Backoff returns the delay before the attempt following attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.InitialBackoff
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * mult)
	}
	return delay
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Option customizes a ResilientClient.
type Option func(*ResilientClient)

// WithTelemetry sets the telemetry sink.
func WithTelemetry(t Telemetry) Option {
	return func(c *ResilientClient) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithRetryPolicy overrides the retry policy derived from the config.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *ResilientClient) {
		c.policy = p
	}
}

// WithSleeper replaces the backoff sleep, mainly for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *ResilientClient) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// ResilientClient issues single JSON chat calls with retry, heartbeat and
// circuit breaking.
type ResilientClient struct {
	provider    ChatProvider
	model       string
	temperature float32
	timeout     time.Duration
	heartbeat   time.Duration
	policy      RetryPolicy
	breaker     *gobreaker.CircuitBreaker
	telemetry   Telemetry
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewResilientClient wraps provider using the limits in config.
func NewResilientClient(provider ChatProvider, config *Config, opts ...Option) *ResilientClient {
	if config == nil {
		config = DefaultConfig()
	}

	c := &ResilientClient{
		provider:    provider,
		model:       config.Model,
		temperature: config.Temperature,
		timeout:     config.Timeout,
		heartbeat:   config.Heartbeat,
		policy:      DefaultRetryPolicy(),
		telemetry:   NopTelemetry{},
		sleep:       sleepContext,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if config.MaxRetries > 0 {
		c.policy.MaxAttempts = config.MaxRetries
	}

	maxFailures := config.BreakerMaxFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm-" + provider.Name(),
		Timeout: config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
		OnStateChange: func(name string, _ gobreaker.State, to gobreaker.State) {
			observability.RecordBreakerState(name, int(to))
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallOption adjusts a single ChatJSON call.
type CallOption func(*callSettings)

type callSettings struct {
	req  ChatRequest
	opID string
}

// WithModel overrides the model for one call.
func WithModel(model string) CallOption {
	return func(s *callSettings) {
		if model != "" {
			s.req.Model = model
		}
	}
}

// WithTemperature overrides the temperature for one call.
func WithTemperature(t float32) CallOption {
	return func(s *callSettings) {
		s.req.Temperature = t
	}
}

// WithResponseFormat overrides the response format for one call.
func WithResponseFormat(format string) CallOption {
	return func(s *callSettings) {
		if format != "" {
			s.req.ResponseFormat = format
		}
	}
}

// WithOpID sets the telemetry operation id for one call.
func WithOpID(opID string) CallOption {
	return func(s *callSettings) {
		s.opID = opID
	}
}

// ProviderName returns the name of the wrapped provider.
func (c *ResilientClient) ProviderName() string {
	return c.provider.Name()
}

// ChatJSON sends prompt and decodes the answer as a JSON object.
// Transient failures are retried with exponential backoff up to the policy
// limit, after which the last error is returned. A non-JSON answer fails at
// once with ErrMalformedResponse.
func (c *ResilientClient) ChatJSON(ctx context.Context, prompt string, opts ...CallOption) (map[string]any, error) {
	settings := callSettings{
		req: ChatRequest{
			Prompt:         prompt,
			Model:          c.model,
			Temperature:    c.temperature,
			ResponseFormat: FormatJSONObject,
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}
	opID := settings.opID
	if opID == "" {
		opID = observability.NewOpID("op")
	}

	name := c.provider.Name()
	maxAttempts := c.policy.attempts()

	for attempt := 1; ; attempt++ {
		c.telemetry.Event(opID, LevelInfo, fmt.Sprintf("attempt %d", attempt), map[string]any{"provider": name, "model": settings.req.Model})

		start := time.Now()
		content, err := c.callWithHeartbeat(ctx, opID, settings.req)
		observability.RecordModelCall(name, time.Since(start), err)

		if err == nil {
			payload, decodeErr := DecodeJSONObject(content)
			if decodeErr != nil {
				c.telemetry.Event(opID, LevelError, "error", map[string]any{"reason": "invalid JSON response", "payload": summarizePayloadSnippet(content)})
				return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
			}
			return payload, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			c.telemetry.Event(opID, LevelError, "error", map[string]any{"error": ctxErr.Error()})
			return nil, ctxErr
		}

		if !IsRetryable(err) || attempt >= maxAttempts {
			c.telemetry.Event(opID, LevelError, "error", map[string]any{"attempt": attempt, "error": err.Error()})
			return nil, err
		}

		delay := c.policy.Backoff(attempt)
		c.telemetry.Event(opID, LevelWarn, "retry", map[string]any{"attempt": attempt, "backoff": delay.String(), "error": err.Error()})
		observability.RecordModelRetry(name)

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

type chatResult struct {
	content string
	err     error
}

// callWithHeartbeat runs one provider call and emits a heartbeat every
// heartbeat interval until it returns. Heartbeats never cancel the call;
// only the per-attempt timeout or the caller's context do.
func (c *ResilientClient) callWithHeartbeat(ctx context.Context, opID string, req ChatRequest) (string, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done := make(chan chatResult, 1)
	go func() {
		v, err := c.breaker.Execute(func() (interface{}, error) {
			return c.provider.Chat(callCtx, req)
		})
		content, _ := v.(string)
		done <- chatResult{content: content, err: err}
	}()

	var tick <-chan time.Time
	if c.heartbeat > 0 {
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	start := time.Now()
	for {
		select {
		case res := <-done:
			if res.err != nil && ctx.Err() == nil && errors.Is(res.err, context.DeadlineExceeded) {
				res.err = &TransientError{Provider: c.provider.Name(), Err: fmt.Errorf("call timed out after %s: %w", c.timeout, res.err)}
			}
			return res.content, res.err
		case <-tick:
			c.telemetry.Heartbeat(opID, time.Since(start), "")
		}
	}
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
