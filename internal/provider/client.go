// Package provider клиент REST API edge-провайдера с повторами при 429
// и ограничением общего времени для интерактивных вызовов.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tempizhere/edgelink/internal/metrics"
)

// Параметры повторов
const (
	MaxAttempts   = 3
	BaseBackoff   = time.Second
	MaxBackoff    = 60 * time.Second
	DefaultBudget = 15 * time.Second
	// DefaultBaseURL адрес API по умолчанию
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"
)

// TokenSource отдаёт текущий API-токен
type TokenSource interface {
	Retrieve(ctx context.Context) (string, error)
}

// Client клиент API провайдера
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	budget     time.Duration
	logger     *zap.Logger

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// Option настраивает Client
type Option func(*Client)

// WithHTTPClient задаёт HTTP-клиент
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit ограничивает частоту запросов к API
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithClock подменяет часы и ожидание, используется в тестах
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.now = now
		c.sleep = sleep
	}
}

// WithJitter подменяет источник случайной добавки к задержке
func WithJitter(jitter func() time.Duration) Option {
	return func(c *Client) { c.jitter = jitter }
}

// NewClient создаёт новый экземпляр Client с бюджетом DefaultBudget
func NewClient(baseURL string, tokens TokenSource, logger *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		budget:     DefaultBudget,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(time.Second) + 1))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBudget возвращает копию клиента с другим бюджетом времени; 0 отключает бюджет
func (c *Client) WithBudget(d time.Duration) *Client {
	cp := *c
	cp.budget = d
	return &cp
}

// Budget возвращает текущий бюджет времени
func (c *Client) Budget() time.Duration {
	return c.budget
}

type envelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result json.RawMessage `json:"result"`
}

func (e envelope) messages() []string {
	messages := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		msg := item.Message
		if msg == "" {
			msg = "Unknown error"
		}
		messages = append(messages, msg)
	}
	return messages
}

// body собирает тело запроса заново для каждой попытки
type body func() (io.Reader, string, error)

func jsonBody(v interface{}) body {
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// Request выполняет запрос к API и раскладывает поле result в out (если out не nil)
func (c *Client) Request(ctx context.Context, method, endpoint string, query url.Values, payload interface{}, out interface{}) error {
	var b body
	if payload != nil {
		b = jsonBody(payload)
	}
	return c.do(ctx, "", method, endpoint, query, b, out)
}

func (c *Client) do(ctx context.Context, token, method, endpoint string, query url.Values, b body, out interface{}) error {
	if token == "" {
		t, err := c.tokens.Retrieve(ctx)
		if err != nil || t == "" {
			return ErrNotConfigured
		}
		token = t
	}

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	start := c.now()
	attempt := 0
	for attempt < MaxAttempts {
		if c.budget > 0 && c.now().Sub(start) > c.budget {
			return ErrBudgetExceeded
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.send(ctx, token, method, target, b)
		if err != nil {
			return err
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		metrics.ProviderRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests {
			attempt++
			if attempt >= MaxAttempts {
				return &APIError{Code: resp.StatusCode, Message: ErrRateLimited.Error()}
			}
			delay := c.retryAfter(resp.Header)
			if delay <= 0 {
				delay = c.backoff(attempt)
			}
			if c.budget > 0 && c.now().Sub(start)+delay > c.budget {
				return ErrBudgetExceeded
			}
			c.logger.Warn("Provider rate limited, retrying",
				zap.String("method", method),
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			metrics.ProviderRetriesTotal.Inc()
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		var env envelope
		decodeErr := json.Unmarshal(data, &env)

		if resp.StatusCode >= http.StatusBadRequest {
			var messages []string
			if decodeErr == nil {
				messages = env.messages()
			}
			return newAPIError(resp.StatusCode, messages)
		}
		if decodeErr != nil {
			return fmt.Errorf("decode response: %w", decodeErr)
		}
		// 2xx с success=false тоже ошибка
		if !env.Success {
			return newAPIError(resp.StatusCode, env.messages())
		}
		if out != nil && len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, out); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
		}
		return nil
	}
	return ErrRateLimited
}

func (c *Client) send(ctx context.Context, token, method, target string, b body) (*http.Response, error) {
	var reader io.Reader
	contentType := "application/json"
	if b != nil {
		r, ct, err := b()
		if err != nil {
			return nil, err
		}
		reader, contentType = r, ct
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	return c.httpClient.Do(req)
}

// backoff экспоненциальная задержка со случайной добавкой до 1s, не больше MaxBackoff
func (c *Client) backoff(attempt int) time.Duration {
	d := time.Duration(float64(BaseBackoff)*math.Pow(2, float64(attempt))) + c.jitter()
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// retryAfter читает Retry-After (секунды или HTTP-дата) либо X-RateLimit-Reset (unix-время)
func (c *Client) retryAfter(h http.Header) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			return max(0, t.Sub(c.now()).Round(time.Second))
		}
	}
	if v := strings.TrimSpace(h.Get("X-RateLimit-Reset")); v != "" {
		if reset, err := strconv.ParseInt(v, 10, 64); err == nil {
			return max(0, time.Unix(reset, 0).Sub(c.now()).Round(time.Second))
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsRetryable сообщает, имеет ли смысл повторить операцию позже
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrBudgetExceeded)
}
