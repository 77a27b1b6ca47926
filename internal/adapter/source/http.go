// Package source reads the case report page from the web, a saved file or
// the snapshot archive.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/ebcovid/caseledger/internal/config"
)

// maxPageSize bounds the page body read into memory.
const maxPageSize = 32 << 20

// ErrPageTooLarge is returned when the page body exceeds the size limit.
var ErrPageTooLarge = errors.New("source: page exceeds size limit")

// HTTP fetches the case report page over HTTP.
type HTTP struct {
	url        string
	userAgent  string
	retries    int
	retryDelay time.Duration
	maxBytes   int64
	httpClient *http.Client
	log        *slog.Logger
}

// NewHTTP creates an HTTP source from cfg.
func NewHTTP(cfg config.SourceConfig, logger *slog.Logger) *HTTP {
	return &HTTP{
		url:        cfg.URL,
		userAgent:  cfg.UserAgent,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		maxBytes:   maxPageSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.With("adapter", "source"),
	}
}

// Name returns the page URL.
func (s *HTTP) Name() string { return s.url }

// Fetch downloads the page body.
func (s *HTTP) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("source: create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	start := time.Now()
	resp, err := s.doWithRetry(ctx, req)
	if err != nil {
		s.log.ErrorContext(ctx, "source request failed", slog.String("url", s.url), slog.String("error", err.Error()))
		return nil, fmt.Errorf("source: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("source: read body: %w", err)
	}
	if int64(len(body)) > s.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrPageTooLarge, s.maxBytes)
	}

	s.log.DebugContext(ctx, "source response",
		slog.String("url", s.url),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return body, nil
}

// doWithRetry executes the request, retrying up to s.retries times on 5xx,
// 429 or network errors.
func (s *HTTP) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := s.httpClient.Do(req)

		if !retryable(resp, err) || attempt >= s.retries {
			return resp, err
		}

		// Don't retry if context is already cancelled.
		if ctx.Err() != nil {
			return resp, err
		}

		reason := "network error"
		if err == nil {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		s.log.WarnContext(ctx, "source retry",
			slog.String("url", s.url),
			slog.String("reason", reason),
			slog.Int("attempt", attempt+1),
		)

		// Close body from the failed attempt before retrying.
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
}

// File reads a page saved on disk.
type File struct {
	path string
}

// NewFile creates a source reading path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Name returns the file path.
func (f *File) Name() string { return f.path }

// Fetch reads the whole file.
func (f *File) Fetch(context.Context) ([]byte, error) {
	body, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return body, nil
}
