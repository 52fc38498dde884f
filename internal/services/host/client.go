// Package host talks to the content host service that stores uploaded
// media blobs and hands out short-lived direct download URLs.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediastream/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   5 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

type resolveResponse struct {
	URL       string `json:"url"`
	SizeBytes int64  `json:"size"`
}

// Resolve asks the host for a direct download URL for the handle.
func (c *Client) Resolve(ctx context.Context, handle domain.Handle) (domain.ResolvedLocation, error) {
	endpoint := fmt.Sprintf("%s/files/%s", c.baseURL, url.PathEscape(string(handle)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.ResolvedLocation{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("host resolve: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.ResolvedLocation{}, domain.ErrNotFound
	case http.StatusRequestEntityTooLarge:
		return domain.ResolvedLocation{}, domain.ErrTooLarge
	default:
		return domain.ResolvedLocation{}, fmt.Errorf("host resolve: unexpected status %d", resp.StatusCode)
	}

	var body resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("host resolve: decode: %w", err)
	}
	if body.URL == "" {
		return domain.ResolvedLocation{}, fmt.Errorf("host resolve: empty url for %s", handle)
	}
	return domain.ResolvedLocation{
		URL:        body.URL,
		SizeBytes:  body.SizeBytes,
		ResolvedAt: c.now(),
	}, nil
}

type uploadResponse struct {
	Handle string `json:"handle"`
}

// Upload streams the file at path to the host as a multipart request and
// returns the handle the host assigned to it.
func (c *Client) Upload(ctx context.Context, path string) (domain.Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("host upload: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusRequestEntityTooLarge:
		return "", domain.ErrTooLarge
	default:
		return "", fmt.Errorf("host upload: unexpected status %d", resp.StatusCode)
	}

	var body uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("host upload: decode: %w", err)
	}
	if body.Handle == "" {
		return "", fmt.Errorf("host upload: empty handle in response")
	}
	return domain.Handle(body.Handle), nil
}
