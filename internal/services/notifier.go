package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/utils"
)

// Notifier pushes operator notifications to a webhook. Dispatch-and-log:
// it returns nothing a caller could fail on.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]any)
}

type webhookNotifier struct {
	log        *logger.Logger
	webhookURL string
	httpClient *http.Client
}

func NewNotifier(log *logger.Logger) Notifier {
	timeoutSec := utils.GetEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 5, log)
	return &webhookNotifier{
		log:        log.With("service", "Notifier"),
		webhookURL: utils.GetEnv("NOTIFY_WEBHOOK_URL", "", log),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

func (n *webhookNotifier) Notify(ctx context.Context, event string, payload map[string]any) {
	if n.webhookURL == "" {
		return
	}
	body := map[string]any{
		"event":   event,
		"payload": payload,
		"ts":      time.Now().Unix(),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		n.log.Warn("Notification payload not serializable", "event", event, "error", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(raw))
	if err != nil {
		n.log.Warn("Notification request build failed", "event", event, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Warn("Notification delivery failed", "event", event, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.log.Warn("Notification rejected", "event", event, "status", resp.StatusCode)
	}
}
