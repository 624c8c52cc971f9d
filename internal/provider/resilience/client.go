package resilience

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the provider while its breaker is open
// or the half-open probe quota is used up.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// errThrottled marks a 429 for retry. It does not count against the breaker.
var errThrottled = errors.New("provider throttled the request")

const (
	defaultTimeout         = 10 * time.Second
	defaultMaxRetries      = 3
	defaultInitialInterval = 100 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second

	// drainLimit bounds how much of a discarded body is read to reuse the connection.
	drainLimit = 4 << 10
)

// ClientConfig configures a Client. Zero durations and counts take defaults.
type ClientConfig struct {
	// Name is the provider name used by the breaker, the registry and logs.
	Name string

	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker nil means DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, tracks the client's health.
	Registry *Registry

	Logger zerolog.Logger
}

// DefaultClientConfig returns the configuration used for provider clients.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         defaultTimeout,
		MaxRetries:      defaultMaxRetries,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
		CircuitBreaker:  &cb,
	}
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaultMaxInterval
	}
	return cfg
}

// Client sends provider requests through a circuit breaker with bounded
// exponential retries. 5xx responses and transport errors count as breaker
// failures and are retried; 429 is retried only; other statuses return as is.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	cfg     ClientConfig
}

// NewClient creates a Client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()

	cb := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cb = *cfg.CircuitBreaker
	}
	if cb.Name == "" {
		cb.Name = cfg.Name
	}
	if cb.OnStateChange == nil {
		cb.OnStateChange = logStateChange(cfg.Logger)
	}

	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: NewCircuitBreaker[*http.Response](cb), //nolint:bodyclose // type parameter
		cfg:     cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

func logStateChange(log zerolog.Logger) func(string, gobreaker.State, gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		ev := log.Warn()
		if to == gobreaker.StateClosed {
			ev = log.Info()
		}
		ev.Str("provider", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Do sends req, retrying under req's context. When retries run out on a
// 5xx or 429 the last such response is returned with a nil error, so callers
// map provider statuses themselves. Bodies are replayed through req.GetBody.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)

	var last *http.Response
	keep := func(resp *http.Response) {
		if last != nil && last != resp {
			discard(last)
		}
		last = resp
	}

	err := backoff.Retry(func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to the caller
			return c.send(req)
		})
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil:
			if resp != nil {
				keep(resp)
			}
			return err
		case resp.StatusCode == http.StatusTooManyRequests:
			keep(resp)
			return errThrottled
		}
		keep(resp)
		return nil
	}, policy)

	if err != nil {
		c.record(err)
		if last != nil {
			return last, nil
		}
		return nil, err
	}
	c.record(nil)
	return last, nil
}

// send makes one attempt. A body that cannot be replayed stops the retries.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		attempt.Body = body
	}

	resp, err := c.http.Do(attempt)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp, &ServerError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) record(err error) {
	if c.cfg.Registry == nil {
		return
	}
	if err != nil {
		c.cfg.Registry.RecordFailure(c.cfg.Name, err)
		return
	}
	c.cfg.Registry.RecordSuccess(c.cfg.Name)
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}

// ServerError is a 5xx answer from a provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the breaker state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts returns the breaker counts for the current generation.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
