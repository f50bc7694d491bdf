package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/studyhub/drive/pkg/logger"
)

type FetchResult struct {
	Data        []byte
	ContentType string
	// Name is the filename suggested by Content-Disposition, if any.
	Name string
}

// Fetcher downloads remote content for save-from-url.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (*FetchResult, error)
}

type HTTPFetcher struct {
	Client   *http.Client
	Timeout  time.Duration
	MaxBytes int64
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: timeout},
		Timeout:  timeout,
		MaxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL) (*FetchResult, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errInvalidInput("invalid url")
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		logger.Warn("url_fetch_failed", map[string]interface{}{
			"host":  u.Host,
			"error": err.Error(),
		})
		return nil, newError(KindInvalidInput, "failed fetching url", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errInvalidInput(fmt.Sprintf("remote server returned status %d", resp.StatusCode))
	}
	if f.MaxBytes > 0 && resp.ContentLength > f.MaxBytes {
		return nil, errInvalidInput("remote file is too large")
	}

	reader := io.Reader(resp.Body)
	if f.MaxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, newError(KindInvalidInput, "failed reading remote content", err)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, errInvalidInput("remote file is too large")
	}

	result := &FetchResult{Data: data, ContentType: resp.Header.Get("Content-Type")}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			result.Name = params["filename"]
		}
	}
	return result, nil
}
