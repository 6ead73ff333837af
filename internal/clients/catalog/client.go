// Package catalog posts approved listing data back to the upstream
// collector and submits infringement checks. Both calls are best-effort
// from the caller's perspective; errors returned here are logged and
// swallowed by the service layer, never propagated to the operation.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/utils"
)

// ProductPayload mirrors the upstream batch_update body for one listing.
type ProductPayload struct {
	ID              int64            `json:"id"`
	ProductName     string           `json:"product_name"`
	ExtCode         string           `json:"extcode"`
	CarouselPicURLs []string         `json:"carousel_pic_urls"`
	SKUList         []map[string]any `json:"sku_list"`
}

type Client interface {
	SaveProduct(ctx context.Context, product ProductPayload) error
	SubmitInfringementCheck(ctx context.Context, apiIDs []int64) error
}

type client struct {
	log        *logger.Logger
	baseURL    string
	authToken  string
	httpClient *http.Client
}

func New(log *logger.Logger) Client {
	baseURL := utils.GetEnv("CATALOG_BASE_URL", "https://gwfpod.com", log)
	authToken := utils.GetEnv("CATALOG_AUTH_TOKEN", "", log)
	timeoutSec := utils.GetEnvAsInt("CATALOG_TIMEOUT_SECONDS", 30, log)
	return &client{
		log:        log.With("client", "Catalog"),
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

type catalogResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (c *client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog post %s: %w", path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("catalog post %s: http %d", path, resp.StatusCode)
	}
	var parsed catalogResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// Some deployments answer with an empty body on success.
		return nil
	}
	if parsed.Code != 0 {
		return fmt.Errorf("catalog post %s: business code %d: %s", path, parsed.Code, parsed.Msg)
	}
	return nil
}

func (c *client) SaveProduct(ctx context.Context, product ProductPayload) error {
	return c.post(ctx, "/api/collect/product/batch_update", map[string]any{
		"products": []ProductPayload{product},
	})
}

func (c *client) SubmitInfringementCheck(ctx context.Context, apiIDs []int64) error {
	if len(apiIDs) == 0 {
		return nil
	}
	return c.post(ctx, "/api/collect/product/batch_infringement_detection", map[string]any{
		"ids": apiIDs,
	})
}
