// Package fetcher retrieves HTML from subject websites with bounded
// redirect following and retry on transient network failures.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/civiclabs/stancewatch/internal/resilience"
)

// Page is a successfully fetched document. FinalURL differs from URL when
// redirects were followed.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       string
}

// Options configures the fetcher.
type Options struct {
	// UserAgent identifies the crawler and a contact reference to site
	// operators. Required by the politeness contract.
	UserAgent string
	// Timeout bounds each individual request attempt. Default: 20s.
	Timeout time.Duration
	// MaxAttempts bounds retries of network-level failures. Non-2xx
	// responses are never retried. Default: 3.
	MaxAttempts int
	// RetryDelay is the linear backoff step between attempts. Default: 1s.
	RetryDelay time.Duration
	// MaxRedirects bounds the redirect chain. Default: 5.
	MaxRedirects int
	// MaxBodyBytes caps how much of a response body is read. Default: 1MiB.
	MaxBodyBytes int64
}

const defaultUserAgent = "stancewatch-crawler/1.0 (+https://stancewatch.org/crawler; crawler@stancewatch.org)"

// Fetcher retrieves pages over HTTP(S) GET, the core's only outbound
// protocol.
type Fetcher struct {
	client *http.Client
	opts   Options
}

// New creates a Fetcher. Redirects are followed manually so the hop bound
// and per-hop status handling stay explicit.
func New(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		opts: opts,
	}
}

// Fetch retrieves the document at rawURL, following up to MaxRedirects 3xx
// hops. Network failures are retried with linearly increasing delay; non-2xx
// responses surface immediately as a classified *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	current, err := url.Parse(rawURL)
	if err != nil {
		return nil, &FetchError{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}

	for hop := 0; hop <= f.opts.MaxRedirects; hop++ {
		resp, body, err := f.get(ctx, current.String())
		if err != nil {
			return nil, f.classifyNetworkError(current.String(), err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return &Page{
				URL:        rawURL,
				FinalURL:   current.String(),
				StatusCode: resp.StatusCode,
				HTML:       string(body),
			}, nil

		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			loc := resp.Header.Get("Location")
			if loc == "" {
				return nil, &FetchError{
					Kind: KindRedirect,
					URL:  current.String(),
					Err:  errMissingLocation,
				}
			}
			next, err := current.Parse(loc)
			if err != nil {
				return nil, &FetchError{Kind: KindRedirect, URL: current.String(), Err: err}
			}
			current = next

		default:
			return nil, &FetchError{
				Kind:       KindHTTPStatus,
				URL:        current.String(),
				StatusCode: resp.StatusCode,
			}
		}
	}

	return nil, &FetchError{
		Kind: KindRedirect,
		URL:  current.String(),
		Err:  errTooManyRedirects,
	}
}

// get performs one GET with network-level retry. The response body is fully
// read and the body stream closed before returning.
func (f *Fetcher) get(ctx context.Context, pageURL string) (*http.Response, []byte, error) {
	type result struct {
		resp *http.Response
		body []byte
	}

	cfg := resilience.RetryConfig{
		MaxAttempts: f.opts.MaxAttempts,
		Backoff:     resilience.LinearBackoff(f.opts.RetryDelay),
		OnRetry:     resilience.RetryLogger("fetcher", "get"),
	}

	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return result{}, err
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, err := f.client.Do(req)
		if err != nil {
			return result{}, err
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
		if err != nil {
			return result{}, resilience.NewTransientError(err)
		}
		return result{resp: resp, body: body}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res.resp, res.body, nil
}

func (f *Fetcher) classifyNetworkError(pageURL string, err error) *FetchError {
	if resilience.IsDNSFailure(err) {
		return &FetchError{Kind: KindDNS, URL: pageURL, Err: err}
	}
	return &FetchError{Kind: KindNetwork, URL: pageURL, Err: err}
}

var (
	errMissingLocation  = &protocolError{"redirect response without Location header"}
	errTooManyRedirects = &protocolError{"too many redirects"}
)

type protocolError struct{ msg string }

func (e *protocolError) Error() string { return e.msg }

// IsHTML reports whether a fetched body looks like an HTML document. Used
// by callers to skip binary or feed responses a site may redirect to.
func IsHTML(p *Page) bool {
	head := p.HTML
	if len(head) > 512 {
		head = head[:512]
	}
	head = strings.ToLower(head)
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}
