// Package labelstore talks to the external image label service. Every
// failure surfaces as apperr.ErrUnavailable so callers can take their
// fallback branch instead of failing the primary operation.
package labelstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/utils"
)

// Entry is one stored label payload, keyed externally by image identity.
type Entry struct {
	URL    string          `json:"url"`
	Labels json.RawMessage `json:"labels"`
}

type Client interface {
	// FetchByURLs performs one batched lookup. The response maps image
	// identity to the stored entry; URLs the store has never seen are
	// simply absent.
	FetchByURLs(ctx context.Context, urls []string) (map[string]Entry, error)
	// Write upserts one label by identity.
	Write(ctx context.Context, url string, labels json.RawMessage, source string) error
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func New(log *logger.Logger) Client {
	baseURL := strings.TrimRight(utils.GetEnv("LABEL_STORE_BASE_URL", "", log), "/")
	timeoutSec := utils.GetEnvAsInt("LABEL_STORE_TIMEOUT_SECONDS", 5, log)
	return &client{
		log:        log.With("client", "LabelStore"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

func (c *client) FetchByURLs(ctx context.Context, urls []string) (map[string]Entry, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("label store not configured: %w", apperr.ErrUnavailable)
	}
	body, err := json.Marshal(map[string]any{"urls": urls})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/labels/by-url", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("Label store unreachable", "error", err)
		return nil, fmt.Errorf("label store fetch: %v: %w", err, apperr.ErrUnavailable)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("Label store returned non-success", "status", resp.StatusCode)
		return nil, fmt.Errorf("label store http %d: %w", resp.StatusCode, apperr.ErrUnavailable)
	}
	var out map[string]Entry
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Warn("Label store response unparsable", "error", err)
		return nil, fmt.Errorf("label store response: %v: %w", err, apperr.ErrUnavailable)
	}
	return out, nil
}

func (c *client) Write(ctx context.Context, url string, labels json.RawMessage, source string) error {
	if c.baseURL == "" {
		return fmt.Errorf("label store not configured: %w", apperr.ErrUnavailable)
	}
	body, err := json.Marshal(map[string]any{
		"url":    url,
		"labels": labels,
		"source": source,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/labels", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("label store write: %v: %w", err, apperr.ErrUnavailable)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("label store write http %d: %w", resp.StatusCode, apperr.ErrUnavailable)
	}
	return nil
}
