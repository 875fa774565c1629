// Package collyfetcher implements crawler.Fetcher using gocolly with bounded
// retries and exponential backoff.
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

	"github.com/JakeFAU/venue-harvester/internal/crawler"
	"github.com/JakeFAU/venue-harvester/internal/metrics"
	"github.com/JakeFAU/venue-harvester/internal/progress"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultBackoffInitial = 500 * time.Millisecond
	defaultBackoffMax     = 30 * time.Second
)

// Config controls collector and retry behavior.
type Config struct {
	UserAgent string
	// Timeout bounds a single request, independent of backoff.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// MaxBodyBytes caps the response size; zero means unlimited. A body that
	// reaches the cap is reported as a failure, never as a partial success.
	MaxBodyBytes int
	// RunID tags emitted progress events.
	RunID [16]byte
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	policy        *crawler.ExponentialRetryPolicy
	emitter       progress.Emitter
	logger        *zap.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// exchange is the outcome of one HTTP round trip.
type exchange struct {
	status   int
	body     []byte
	duration time.Duration
}

// New builds a Fetcher. emitter may be nil.
func New(cfg Config, emitter progress.Emitter, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = defaultBackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaultBackoffMax
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.MaxBodySize = max(cfg.MaxBodyBytes, 0)
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		policy:        crawler.NewExponentialRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		emitter:       emitter,
		logger:        logger,
		sleep:         sleepContext,
	}
}

// Fetch retrieves addr. 404 and 410 end immediately as NotFound. 5xx and
// connection-level errors are retried with backoff. Anything else, including a
// malformed address, ends immediately as a transient failure.
func (f *Fetcher) Fetch(ctx context.Context, addr crawler.SourceAddress) crawler.FetchResult {
	for attempt := 1; ; attempt++ {
		ex, err := f.fetchOnce(ctx, addr.URL)
		f.report(addr.URL, ex)

		class, cause := classify(ex, err)
		if class == crawler.StatusOK && f.truncated(ex) {
			class = crawler.StatusRejected
			cause = fmt.Errorf("response body reached the %d byte cap", f.cfg.MaxBodyBytes)
		}
		switch class {
		case crawler.StatusOK:
			metrics.ObserveFetch(addr.URL, crawler.OutcomeSuccess.String())
			f.logger.Info("downloaded",
				zap.String("url", addr.URL),
				zap.Int("kb", len(ex.body)/1024),
				zap.Int("attempt", attempt),
			)
			return crawler.FetchResult{
				Outcome:  crawler.OutcomeSuccess,
				Attempts: attempt,
				Page: crawler.RawPage{
					Address:    addr,
					StatusCode: ex.status,
					Body:       ex.body,
					Duration:   ex.duration,
				},
			}
		case crawler.StatusMissing:
			metrics.ObserveFetch(addr.URL, crawler.OutcomeNotFound.String())
			f.logger.Debug("listing not found", zap.String("url", addr.URL), zap.Int("status", ex.status))
			return crawler.FetchResult{Outcome: crawler.OutcomeNotFound, Attempts: attempt}
		case crawler.StatusRejected:
			return f.fail(addr, attempt, cause)
		}

		if !f.policy.ShouldRetry(attempt) {
			return f.fail(addr, attempt, fmt.Errorf("giving up after %d attempts: %w", attempt, cause))
		}
		delay := f.policy.Backoff(attempt)
		metrics.ObserveRetry(addr.URL)
		f.logger.Debug("retrying fetch",
			zap.String("url", addr.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(cause),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return f.fail(addr, attempt, fmt.Errorf("backoff interrupted: %w", err))
		}
	}
}

// truncated reports whether colly may have cut the body at the configured cap.
func (f *Fetcher) truncated(ex exchange) bool {
	return f.cfg.MaxBodyBytes > 0 && len(ex.body) >= f.cfg.MaxBodyBytes
}

func (f *Fetcher) fail(addr crawler.SourceAddress, attempts int, err error) crawler.FetchResult {
	metrics.ObserveFetch(addr.URL, crawler.OutcomeTransientFailure.String())
	return crawler.FetchResult{Outcome: crawler.OutcomeTransientFailure, Attempts: attempts, Err: err}
}

func classify(ex exchange, err error) (crawler.StatusClass, error) {
	if ex.status == 0 {
		if err == nil {
			return crawler.StatusRejected, errors.New("no response")
		}
		if crawler.IsRetriableError(err) {
			return crawler.StatusRetriable, err
		}
		return crawler.StatusRejected, err
	}
	class := crawler.ClassifyHTTPStatus(ex.status)
	if class == crawler.StatusOK {
		return class, nil
	}
	return class, fmt.Errorf("unexpected status %d", ex.status)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (exchange, error) {
	var (
		ex       exchange
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, time.Now(), &ex, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return exchange{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return ex, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		if err != nil {
			return ex, fmt.Errorf("colly visit failed: %w", err)
		}
		return ex, nil
	}
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, start time.Time, ex *exchange, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*ex = exchange{
			status:   r.StatusCode,
			body:     append([]byte(nil), r.Body...),
			duration: time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		ex.duration = time.Since(start)
		if r != nil {
			ex.status = r.StatusCode
			ex.body = append([]byte(nil), r.Body...)
		}
		*fetchErr = err
	})
}

// report emits a progress event for every completed HTTP exchange.
func (f *Fetcher) report(rawURL string, ex exchange) {
	if f.emitter == nil || ex.status == 0 {
		return
	}
	f.emitter.Emit(progress.Event{
		RunID:       f.cfg.RunID,
		TS:          time.Now().UTC(),
		Stage:       progress.StageFetchDone,
		Site:        metrics.SanitizeSite(rawURL),
		URL:         rawURL,
		Bytes:       int64(len(ex.body)),
		StatusClass: progress.ClassifyStatus(ex.status),
		Dur:         ex.duration,
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
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
