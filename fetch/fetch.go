// Package fetch downloads remote assets over an authenticated connection,
// with a one-level fallback for asset URLs that resolve to HTML pages.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/oauth2"
)

// HTTPStatusError indicates a non-success response for an asset download.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsHTTPStatusError checks if an error is a non-success status error.
func IsHTTPStatusError(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr)
}

// Fetcher downloads assets with a bearer token taken from source.
type Fetcher struct {
	client *http.Client
	source oauth2.TokenSource
	logger *slog.Logger
}

// New creates an asset fetcher. A nil source downloads without credentials.
func New(client *http.Client, source oauth2.TokenSource, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		client: client,
		source: source,
		logger: logger,
	}
}

// Download fetches assetURL and writes its bytes to localPath. It reports
// whether a file was written: an asset that resolves to an HTML page with
// no image inside is logged and skipped without error, every other failure
// is returned. No retries here; the caller decides whether a post survives.
func (f *Fetcher) Download(ctx context.Context, assetURL, localPath string) (bool, error) {
	return f.download(ctx, assetURL, localPath, true)
}

func (f *Fetcher) download(ctx context.Context, assetURL, localPath string, allowFallback bool) (bool, error) {
	body, contentType, err := f.get(ctx, assetURL)
	if err != nil {
		return false, err
	}

	if strings.Contains(contentType, "text/html") {
		if !allowFallback {
			f.logger.Warn("Fallback fetch returned HTML again, skipping asset", "url", assetURL)
			return false, nil
		}
		return f.fallback(ctx, assetURL, localPath, body)
	}

	if err := os.WriteFile(localPath, body, 0o644); err != nil {
		return false, fmt.Errorf("write asset %s: %w", localPath, err)
	}

	f.logger.Debug("Asset downloaded", "url", assetURL, "path", localPath, "bytes", len(body))
	return true, nil
}

// fallback handles mis-typed asset links that resolve to an HTML page: the
// first img src on that page is fetched instead, written at the original
// local path. A page with no image is a soft skip, not an error.
func (f *Fetcher) fallback(ctx context.Context, assetURL, localPath string, page []byte) (bool, error) {
	f.logger.Info("Expected an image but received HTML content", "url", assetURL)

	imgURL, found := firstImageSource(page)
	if !found {
		f.logger.Warn("No image found in HTML content, skipping asset", "url", assetURL, "path", localPath)
		return false, nil
	}

	written, err := f.download(ctx, imgURL, localPath, false)
	if err != nil {
		return false, fmt.Errorf("fallback fetch %s: %w", imgURL, err)
	}
	if written {
		f.logger.Info("Extracted image from HTML content", "url", imgURL, "path", localPath)
	}
	return written, nil
}

func (f *Fetcher) get(ctx context.Context, assetURL string) (body []byte, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	if f.source != nil {
		token, err := f.source.Token()
		if err != nil {
			return nil, "", fmt.Errorf("bearer token: %w", err)
		}
		token.SetAuthHeader(req)
	}

	startTime := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", assetURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", &HTTPStatusError{URL: assetURL, StatusCode: resp.StatusCode}
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", assetURL, err)
	}

	f.logger.Debug("HTTP request completed",
		"url", assetURL,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(startTime).Milliseconds(),
		"bytes", len(body))

	return body, resp.Header.Get("Content-Type"), nil
}

// firstImageSource extracts the src of the first img element in page.
func firstImageSource(page []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", false
	}
	src, exists := doc.Find("img").First().Attr("src")
	if !exists || src == "" {
		return "", false
	}
	return src, true
}
