package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modoterra/catlog/pkg/cache"
	"github.com/modoterra/catlog/pkg/core"
)

const (
	// DefaultBaseURL serves one cat picture per status code.
	DefaultBaseURL = "https://http.cat"

	maxImageSize = 10 << 20 // 10MB
)

// Fetcher retrieves the picture for a status code.
type Fetcher interface {
	Fetch(ctx context.Context, code core.StatusCode) ([]byte, error)
}

// Renderer displays a fetched picture.
type Renderer interface {
	Render(code core.StatusCode, image []byte) error
}

// HTTPDoer defines a common interface for HTTP clients.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Cat fetches the picture for a detected code and hands it to a renderer.
type Cat struct {
	fetcher  Fetcher
	renderer Renderer
}

func NewCat(fetcher Fetcher, renderer Renderer) *Cat {
	return &Cat{fetcher: fetcher, renderer: renderer}
}

func (c *Cat) Notify(ctx context.Context, d core.Detection) error {
	image, err := c.fetcher.Fetch(ctx, d.Code)
	if err != nil {
		return errors.Join(fmt.Errorf("fetch image for %d: %w", d.Code, err), core.ErrNotification)
	}
	if err := c.renderer.Render(d.Code, image); err != nil {
		return errors.Join(fmt.Errorf("render image for %d: %w", d.Code, err), core.ErrNotification)
	}
	return nil
}

// HTTPFetcher downloads pictures from an http.cat style service, keeping
// copies in an optional cache.
type HTTPFetcher struct {
	baseURL    string
	httpClient HTTPDoer
	cache      cache.Cache
	logger     *slog.Logger
}

// NewHTTPFetcher creates a fetcher for baseURL. cache may be nil.
func NewHTTPFetcher(httpClient HTTPDoer, baseURL string, c cache.Cache, logger *slog.Logger) *HTTPFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		cache:      c,
		logger:     logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, code core.StatusCode) ([]byte, error) {
	if f.cache != nil {
		if body, err := f.cache.Get(code); err == nil {
			f.logger.Debug("image cache hit", "code", int(code))
			return body, nil
		}
	}

	url := fmt.Sprintf("%s/%d", f.baseURL, code)
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if errReq != nil {
		return nil, errReq
	}

	resp, errResp := f.httpClient.Do(req)
	if errResp != nil {
		return nil, errResp
	}

	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			f.logger.Error("Failed to close response body", "err", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if errRead != nil {
		return nil, errRead
	}
	if len(body) > maxImageSize {
		return nil, fmt.Errorf("GET %s: image larger than %d bytes", url, maxImageSize)
	}

	if f.cache != nil {
		if err := f.cache.Set(code, body); err != nil {
			f.logger.Warn("Failed to cache image", "code", int(code), "err", err)
		}
	}

	return body, nil
}
