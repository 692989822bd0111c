// Package fetch issues upstream HTTP requests with retry, per-host rate
// limiting, and charset correction, and defines the error taxonomy the rest
// of the harvester keys on.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Request describes one document to fetch. AltURL, when set, names the same
// resource on the secondary host; it is tried once after the primary's
// retries are exhausted.
type Request struct {
	URL    string
	AltURL string
	Method string
	Form   url.Values
}

// Document is one fetched page, decoded to UTF-8.
type Document struct {
	URL      string
	Status   int
	Body     string
	Charset  string
	Bytes    int
	Duration time.Duration
}

// Fetcher fetches one upstream document. Implementations must return a
// *TransportError for network/status failures and a *DecodeError for bodies
// that cannot be converted to UTF-8.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Document, error)
}

// Config carries the client knobs; the app layer maps them from Viper.
type Config struct {
	Timeout     time.Duration
	UserAgent   string
	Rate        float64
	Burst       int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Client implements Fetcher using a Colly collector cloned per request.
type Client struct {
	base    *colly.Collector
	retry   *ExponentialRetryPolicy
	limiter *HostLimiter
	pause   pauseController
	logger  *zap.Logger
}

// NewClient constructs a configured Colly-based Fetcher.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	opts := []colly.CollectorOption{
		colly.Async(true),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	base := colly.NewCollector(opts...)
	// Probe and page URLs repeat across a run; revisits are the norm here.
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &Client{
		base:    base,
		retry:   NewExponentialRetryPolicy(cfg.MaxAttempts, cfg.BaseDelay, cfg.MaxDelay),
		limiter: NewHostLimiter(cfg.Rate, cfg.Burst),
		pause:   &timerPauseController{},
		logger:  logger,
	}, nil
}

// Fetch retrieves and decodes one document, retrying per the shared policy
// and falling back to the alternate host once after primary exhaustion.
func (c *Client) Fetch(ctx context.Context, req Request) (*Document, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx, req.URL); err != nil {
			return nil, err
		}
		doc, err := c.fetchOnce(ctx, req.URL, req.Method, req.Form)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !c.retry.ShouldRetry(err, attempt+1) {
			break
		}
		backoff := c.retry.Backoff(attempt)
		c.logger.Debug("retrying fetch",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		c.pause.Pause(ctx, backoff)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	var transportErr *TransportError
	if req.AltURL != "" && errors.As(lastErr, &transportErr) && ctx.Err() == nil {
		c.logger.Warn("primary host exhausted, trying alternate",
			zap.String("url", req.URL),
			zap.String("alt", req.AltURL),
			zap.Error(lastErr))
		if err := c.limiter.Wait(ctx, req.AltURL); err != nil {
			return nil, err
		}
		doc, err := c.fetchOnce(ctx, req.AltURL, req.Method, req.Form)
		if err == nil {
			return doc, nil
		}
		c.logger.Warn("alternate host failed too",
			zap.String("alt", req.AltURL),
			zap.Error(err))
	}
	return nil, lastErr
}

type rawResult struct {
	status      int
	body        []byte
	finalURL    string
	contentType string
	err         error
}

func (c *Client) fetchOnce(ctx context.Context, rawURL, method string, form url.Values) (*Document, error) {
	start := time.Now()
	collector := c.base.Clone()
	resultCh := make(chan rawResult, 1)
	var once sync.Once
	send := func(res rawResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		contentType := ""
		if r.Headers != nil {
			contentType = r.Headers.Get("Content-Type")
		}
		send(rawResult{
			status:      r.StatusCode,
			body:        append([]byte{}, r.Body...),
			finalURL:    r.Request.URL.String(),
			contentType: contentType,
		})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(rawResult{err: &TransportError{URL: rawURL, Status: status, Err: err}})
	})

	var visitErr error
	if method == http.MethodPost && len(form) > 0 {
		visitErr = collector.Post(rawURL, flattenForm(form))
	} else {
		visitErr = collector.Visit(rawURL)
	}
	if visitErr != nil {
		return nil, &TransportError{URL: rawURL, Err: visitErr}
	}
	// Wait in a goroutine so cancellation unblocks the caller immediately;
	// the once guard makes the no-result send a no-op when a callback
	// already delivered.
	go func() {
		collector.Wait()
		send(rawResult{err: &TransportError{URL: rawURL, Err: errors.New("fetch produced no result")}})
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		text, charset, err := decodeBody(res.body, res.contentType)
		if err != nil {
			return nil, &DecodeError{URL: rawURL, Charset: charset, Err: err}
		}
		return &Document{
			URL:      res.finalURL,
			Status:   res.status,
			Body:     text,
			Charset:  charset,
			Bytes:    len(res.body),
			Duration: time.Since(start),
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func flattenForm(form url.Values) map[string]string {
	flat := make(map[string]string, len(form))
	for k, vs := range form {
		if len(vs) > 0 {
			flat[k] = vs[0]
		}
	}
	return flat
}
