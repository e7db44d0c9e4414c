package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/trackbridge/internal/domain/group"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
)

// Config configures the fetch client.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// RetryMax is the transport retry count. The poll tick is the normal
	// retry mechanism, so it defaults to zero.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is requests per second; zero means unlimited.
	RateLimit float64
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		UserAgent:    "trackbridge/1.0",
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 30 * time.Second,
	}
}

// Client wraps resty with rate limiting and a circuit breaker
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker
	Mu      sync.RWMutex

	logger *zap.Logger
	tracer *tracing.Tracer
	now    func() time.Time
}

// envelope is the API response wrapper.
type envelope struct {
	Result   string          `json:"result"`
	Response json.RawMessage `json:"response"`
	Meta     struct {
		Time        int64  `json:"time"`
		Error       string `json:"error"`
		ErrorDetail string `json:"error_detail"`
	} `json:"meta"`
}

// NewClient creates the fetch client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("fetch")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = leveledLogger{logger.Sugar()}

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if cfg.UserAgent != "" {
		restyClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	breaker := resilience.New("group-fetch", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	c := &Client{
		Resty:   restyClient,
		Breaker: breaker,
		logger:  logger,
		now:     time.Now,
	}
	c.SetRateLimit(cfg.RateLimit)
	return c
}

// WithTracer records a span per fetch and propagates trace headers
func (c *Client) WithTracer(tracer *tracing.Tracer) *Client {
	c.tracer = tracer
	return c
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Request creates a new request with rate limiting and circuit breaker
// protection
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if c.Breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}

	c.Mu.RLock()
	limiter := c.Limiter
	c.Mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	return c.Resty.R().SetContext(ctx), nil
}

// ExecuteWithBreaker executes an HTTP operation with circuit breaker protection
func (c *Client) ExecuteWithBreaker(fn func() (*resty.Response, error)) (*resty.Response, error) {
	result, err := c.Breaker.Execute(func() (interface{}, error) {
		return fn()
	})

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("remote service unavailable: %w", err)
	}
	if err != nil {
		return nil, err
	}

	resp, _ := result.(*resty.Response)
	return resp, nil
}

// Get fetches url and resolves to a result envelope.
func (c *Client) Get(ctx context.Context, url string, params map[string]string, account *types.Account) group.Result {
	if c.tracer != nil {
		var span *tracing.Span
		span, ctx = c.tracer.StartSpan(ctx, "fetch")
		span.SetTag("http.url", url)
		defer func() {
			span.Finish()
			c.tracer.Submit(span)
		}()
	}

	req, err := c.Request(ctx)
	if err != nil {
		return c.failure(url, err)
	}

	headers := map[string]string{}
	tracing.InjectTraceContext(ctx, headers)
	req.SetHeaders(headers)

	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if account != nil && account.Token != "" {
		req.SetAuthToken(account.Token)
	}

	resp, err := c.ExecuteWithBreaker(func() (*resty.Response, error) {
		resp, err := req.Get(url)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return resp, fmt.Errorf("unexpected status %s", resp.Status())
		}
		return resp, nil
	})
	if err != nil {
		return c.failure(url, err)
	}

	return c.decode(resp.Body())
}

func (c *Client) decode(body []byte) group.Result {
	now := c.now().UnixMilli()

	var env envelope
	if err := sonic.Unmarshal(body, &env); err != nil || env.Result == "" {
		// Not an API envelope: relay the body as is.
		return group.Result{Status: true, Response: json.RawMessage(body), Time: now}
	}

	res := group.Result{
		Status:   env.Result == "ok",
		Response: env.Response,
		Time:     env.Meta.Time,
	}
	if res.Time == 0 {
		res.Time = now
	}
	if !res.Status {
		res.Error = env.Meta.Error
		if env.Meta.ErrorDetail != "" {
			res.Error += ": " + env.Meta.ErrorDetail
		}
	}
	return res
}

func (c *Client) failure(url string, err error) group.Result {
	c.logger.Warn("Fetch failed", zap.String("url", url), zap.Error(err))
	return group.Result{Status: false, Error: err.Error(), Time: c.now().UnixMilli()}
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.Breaker.State()
}

// BreakerCounts returns circuit breaker statistics
func (c *Client) BreakerCounts() resilience.Counts {
	return c.Breaker.Counts()
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
