package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"dutycal/internal/httpx"
	appLog "dutycal/internal/log"
)

// FetchResult is the outcome of one fetch.
type FetchResult struct {
	URL       string
	Body      []byte
	FromCache bool // body came from the disk cache (304, network error or non-OK status)
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads remote files with conditional requests (ETag /
// Last-Modified) and keeps the last good body on disk. It is used for the
// roster calendar and for the airport reference CSVs.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	retry    httpx.RetryConfig
}

// NewFetcher creates a Fetcher storing per-URL cache directories under
// cacheDir. A nil client uses a client with a 30s timeout.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		client:   client,
		cacheDir: cacheDir,
		retry:    httpx.DefaultRetryConfig(),
	}
}

// SetRetry replaces the retry configuration.
func (f *Fetcher) SetRetry(cfg httpx.RetryConfig) {
	f.retry = cfg
}

// Fetch downloads rawURL. On network errors or non-OK responses the cached
// body is returned instead when one exists.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	if rawURL == "" {
		return FetchResult{}, errors.New("fetch: url is empty")
	}

	cachePath := f.cachePathForURL(rawURL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, fmt.Errorf("fetch: create cache dir: %w", err)
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body"))
	if len(cachedBody) == 0 {
		// Without a body a 304 would be useless.
		meta = cacheEntry{}
	}

	fromCache := func(reason string, err error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, fmt.Errorf("fetch %s: %w", RedactURL(rawURL), err)
		}
		appLog.Error("fetch failed, using cached body", err, "url", RedactURL(rawURL), "reason", reason)
		return FetchResult{URL: rawURL, Body: cachedBody, FromCache: true}, nil
	}

	appLog.Debug("fetch start", "url", RedactURL(rawURL))

	resp, body, err := httpx.DoWithRetry(ctx, f.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept-Encoding", httpx.AcceptEncoding)
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
		return req, nil
	}, f.retry)
	if err != nil {
		if ctx.Err() != nil {
			return FetchResult{}, ctx.Err()
		}
		var herr *httpx.HTTPError
		if errors.As(err, &herr) {
			return fromCache("status", err)
		}
		return fromCache("network", err)
	}

	if resp.StatusCode == http.StatusNotModified {
		appLog.Info("fetch not modified, using cache", "url", RedactURL(rawURL))
		return FetchResult{URL: rawURL, Body: cachedBody, FromCache: true}, nil
	}

	newMeta := cacheEntry{
		URL:          rawURL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if err := saveCache(cachePath, newMeta, body); err != nil {
		appLog.Error("fetch cache save failed", err, "url", RedactURL(rawURL))
	}

	appLog.Info("fetch success", "url", RedactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
	return FetchResult{URL: rawURL, Body: body}, nil
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// RedactURL keeps scheme and host of u and hides everything else, since
// calendar subscription URLs usually embed a private token.
//
//	https://user:pw@example.com/path/private.ics?token=abcd -> https://example.com/...(redacted)
func RedactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "url://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
