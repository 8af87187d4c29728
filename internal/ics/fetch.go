package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"syncademic/internal/domain"
	appLog "syncademic/internal/log"
)

// Fetcher retrieves ICS payloads over HTTP with the source-facing limits:
// bounded redirects, loose content-type validation and a payload size cap.
type Fetcher struct {
	client          *http.Client
	maxPayloadBytes int64
}

// FetcherOptions carries the fetch knobs from config.
type FetcherOptions struct {
	MaxRedirects    int
	MaxPayloadBytes int64
	Timeout         time.Duration
}

// NewFetcher creates an HTTP fetcher. Zero option fields fall back to the
// production defaults.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = 5 << 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	maxRedirects := opts.MaxRedirects
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		maxPayloadBytes: opts.MaxPayloadBytes,
	}
}

// HTTPSource adapts one subscription URL into a Source backed by a shared
// Fetcher.
type HTTPSource struct {
	URL     string
	Fetcher *Fetcher
}

func (s HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	return s.Fetcher.Fetch(ctx, s.URL)
}

func (s HTTPSource) Ref() string { return redactURL(s.URL) }

// Fetch GETs the URL and returns the payload, classifying failures into
// the sync error taxonomy: network trouble and 5xx are retriable
// (SourceUnreachable); 4xx, bad content-type and oversized bodies are
// terminal (SourceInvalid).
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, domain.NewSyncError(domain.ErrSourceInvalid, "fetch", errors.New("source URL is empty"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewSyncError(domain.ErrSourceInvalid, "fetch", err)
	}

	appLog.Info("ics fetch start", "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewSyncError(domain.ErrCancelled, "fetch", ctx.Err())
		}
		return nil, domain.NewSyncError(domain.ErrSourceUnreachable, "fetch", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to body handling
	case resp.StatusCode >= 500:
		return nil, domain.NewSyncError(domain.ErrSourceUnreachable, "fetch",
			fmt.Errorf("source returned %s", resp.Status))
	default:
		return nil, domain.NewSyncError(domain.ErrSourceInvalid, "fetch",
			fmt.Errorf("source returned %s", resp.Status))
	}

	if err := validateContentType(resp.Header.Get("Content-Type")); err != nil {
		return nil, domain.NewSyncError(domain.ErrSourceInvalid, "fetch", err)
	}

	// Read one byte past the cap so oversized payloads are detected
	// without buffering the excess.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxPayloadBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewSyncError(domain.ErrCancelled, "fetch", ctx.Err())
		}
		return nil, domain.NewSyncError(domain.ErrSourceUnreachable, "fetch", err)
	}
	if int64(len(body)) > f.maxPayloadBytes {
		return nil, domain.NewSyncError(domain.ErrSourceInvalid, "fetch",
			fmt.Errorf("payload exceeds %d bytes", f.maxPayloadBytes))
	}

	appLog.Info("ics fetch success", "url", redactURL(url), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// validateContentType accepts anything that looks like text/calendar or
// text/plain; feeds in the wild are sloppy about this header. A missing
// header is accepted.
func validateContentType(ct string) error {
	if ct == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return fmt.Errorf("unparseable content-type %q", ct)
	}
	switch {
	case mediaType == "text/calendar", mediaType == "text/plain":
		return nil
	case strings.HasSuffix(mediaType, "+ics"), strings.Contains(mediaType, "calendar"):
		return nil
	}
	return fmt.Errorf("unexpected content-type %q", mediaType)
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
// Subscription URLs frequently embed access tokens in path or query.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}

	j := i + 3
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
