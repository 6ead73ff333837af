package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/utils"
)

// VisionClient submits an ordered image list plus a prompt to the vision
// scorer and returns the raw reply text. The scorer takes tens of seconds
// on large candidate sets, hence the generous default timeout.
type VisionClient interface {
	ScoreImages(ctx context.Context, imageURLs []string, prompt string) (string, error)
}

type visionClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewVisionClient(log *logger.Logger) (VisionClient, error) {
	apiKey := utils.GetEnv("VISION_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("missing VISION_API_KEY")
	}
	baseURL := strings.TrimRight(utils.GetEnv("VISION_BASE_URL", "https://open.bigmodel.cn", log), "/")
	model := utils.GetEnv("VISION_MODEL", "glm-4.6v", log)
	timeoutSec := utils.GetEnvAsInt("VISION_TIMEOUT_SECONDS", 120, log)
	maxRetries := utils.GetEnvAsInt("VISION_MAX_RETRIES", 2, log)

	return &visionClient{
		log:        log.With("service", "VisionClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type visionHTTPError struct {
	StatusCode int
	Body       string
}

func (e *visionHTTPError) Error() string {
	return fmt.Sprintf("vision http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *visionHTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	v := low + rand.Float64()*(2*delta)
	return time.Duration(v * float64(time.Second))
}

type visionMessageContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type visionChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *visionClient) ScoreImages(ctx context.Context, imageURLs []string, prompt string) (string, error) {
	if len(imageURLs) == 0 {
		return "", fmt.Errorf("no images to score: %w", apperr.ErrInvalidArgument)
	}
	content := []visionMessageContent{{Type: "text", Text: prompt}}
	for _, u := range imageURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		img := &struct {
			URL string `json:"url"`
		}{URL: u}
		content = append(content, visionMessageContent{Type: "image_url", ImageURL: img})
	}
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
		"response_format": map[string]string{"type": "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(jitterSleep(time.Duration(attempt) * 2 * time.Second)):
			}
		}
		reply, err := c.call(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryableErr(err) {
			break
		}
		c.log.Warn("Vision scorer call failed, retrying", "attempt", attempt+1, "error", err)
	}
	return "", fmt.Errorf("vision scorer: %v: %w", lastErr, apperr.ErrUnavailable)
}

func (c *visionClient) call(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/paas/v4/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &visionHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var parsed visionChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("vision response not JSON: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("vision response has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
