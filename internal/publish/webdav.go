package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-webdav"
)

// WebDAVConfig describes a WebDAV upload target.
type WebDAVConfig struct {
	// Endpoint is the server root, e.g. "https://dav.example.com/remote.php/dav/files/me/".
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Path is the file path below Endpoint.
	Path     string `yaml:"path" json:"path"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// WebDAVSink uploads the calendar with a single PUT.
type WebDAVSink struct {
	client *webdav.Client
	path   string
}

func NewWebDAVSink(cfg WebDAVConfig, httpClient *http.Client) (*WebDAVSink, error) {
	if cfg.Endpoint == "" || cfg.Path == "" {
		return nil, errors.New("webdav: endpoint and path are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	var hc webdav.HTTPClient = httpClient
	if cfg.Username != "" {
		hc = webdav.HTTPClientWithBasicAuth(httpClient, cfg.Username, cfg.Password)
	}
	client, err := webdav.NewClient(hc, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("webdav: new client: %w", err)
	}
	return &WebDAVSink{client: client, path: cfg.Path}, nil
}

func (w *WebDAVSink) Name() string { return "webdav:" + w.path }

func (w *WebDAVSink) Publish(ctx context.Context, body []byte) error {
	wc, err := w.client.Create(ctx, w.path)
	if err != nil {
		return fmt.Errorf("webdav: create %s: %w", w.path, err)
	}
	if _, err := wc.Write(body); err != nil {
		wc.Close()
		return fmt.Errorf("webdav: write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("webdav: upload: %w", err)
	}
	return nil
}
