// Package collyfetcher implements scraper.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/metrics"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	Parallelism   int
	DownloadDelay time.Duration
	MaxRetries    int
	RetryBase     time.Duration
	Throttle      ThrottleConfig
}

// Fetcher implements scraper.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	retry         *ExponentialRetryPolicy
	throttle      *Throttle
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Cookies are disabled and robots.txt is not consulted.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	c.DisableCookies()
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: cfg.Parallelism}); err != nil {
		return nil, fmt.Errorf("configure collector limits: %w", err)
	}
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		retry:         NewExponentialRetryPolicy(cfg.MaxRetries, cfg.RetryBase, 0),
		throttle:      NewThrottle(cfg.DownloadDelay, cfg.Throttle),
		logger:        logger,
	}, nil
}

// Fetch executes a GET or HEAD request, retrying transient failures.
func (f *Fetcher) Fetch(ctx context.Context, request scraper.FetchRequest) (scraper.FetchResponse, error) {
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	for attempt := 1; ; attempt++ {
		if err := f.throttle.Wait(ctx); err != nil {
			return scraper.FetchResponse{}, err
		}
		start := time.Now()
		resp, err := f.fetchOnce(ctx, method, request.URL)
		elapsed := time.Since(start)

		code := resp.StatusCode
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			code = statusErr.Code
		}
		f.throttle.Observe(elapsed, code)
		metrics.ObserveFetch(method, code, elapsed)
		metrics.SetThrottleDelay(f.throttle.Delay())

		if err == nil {
			return resp, nil
		}
		if !f.retry.ShouldRetry(err, attempt) {
			return scraper.FetchResponse{}, fmt.Errorf("fetch %s %s: %w", method, request.URL, err)
		}
		backoff := f.retry.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", request.URL),
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return scraper.FetchResponse{}, fmt.Errorf("fetch %s %s: %w", method, request.URL, ctx.Err())
		case <-timer.C:
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, method, url string) (scraper.FetchResponse, error) {
	var (
		result   scraper.FetchResponse
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, &result, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, url, nil, nil, nil)
	}()

	select {
	case <-ctx.Done():
		return scraper.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return result, fetchErr
		}
		if err != nil {
			return scraper.FetchResponse{}, fmt.Errorf("colly request failed: %w", err)
		}
		return result, nil
	}
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *scraper.FetchResponse, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = toFetchResponse(r)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= http.StatusBadRequest {
			*result = toFetchResponse(r)
			*fetchErr = &StatusError{URL: result.URL, Code: r.StatusCode}
			return
		}
		*fetchErr = err
	})
}

func toFetchResponse(r *colly.Response) scraper.FetchResponse {
	resp := scraper.FetchResponse{
		StatusCode: r.StatusCode,
		Body:       append([]byte(nil), r.Body...),
	}
	if r.Request != nil && r.Request.URL != nil {
		resp.URL = r.Request.URL.String()
	}
	if r.Headers != nil {
		resp.Headers = r.Headers.Clone()
	}
	return resp
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
