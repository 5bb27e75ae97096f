// Package httputil provides helpers shared by the backend adapters.
package httputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultMaxBodyBytes caps upstream response bodies to 50MB; generated
// images can be large but anything beyond this is a misbehaving service.
const DefaultMaxBodyBytes int64 = 50 * 1024 * 1024

// ReadBody reads up to DefaultMaxBodyBytes from the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, DefaultMaxBodyBytes))
}

// PostJSON issues a POST with a JSON body and the given headers, returning
// the status code and response body. The request carries ctx's deadline.
func PostJSON(ctx context.Context, client *http.Client, url string, payload any, headers map[string]string) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := ReadBody(resp)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// GetJSON issues a GET with the given headers, returning the status code and
// response body.
func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := ReadBody(resp)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// FetchImage downloads image bytes from a result URL and derives the format
// tag from the Content-Type header (falling back to the URL extension).
func FetchImage(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("image download failed with status %d", resp.StatusCode)
	}
	data, err := ReadBody(resp)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	return data, FormatFromContentType(resp.Header.Get("Content-Type"), url), nil
}

// FormatFromContentType normalizes a MIME type (or URL extension) to a
// short format tag.
func FormatFromContentType(contentType, url string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return "jpeg"
	case strings.Contains(contentType, "webp"):
		return "webp"
	}
	switch {
	case strings.HasSuffix(url, ".jpg"), strings.HasSuffix(url, ".jpeg"):
		return "jpeg"
	case strings.HasSuffix(url, ".webp"):
		return "webp"
	default:
		return "png"
	}
}
