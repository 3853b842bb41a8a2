package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nao1215/driftwatch/internal/model"
)

// Webhook posts alerts as JSON to an HTTP endpoint.
type Webhook struct {
	client *http.Client
	url    string
}

// NewWebhook creates a Webhook notifier.
func NewWebhook(client *http.Client, url string) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{client: client, url: url}
}

type webhookPayload struct {
	model.Alert
	Title          string `json:"title"`
	Recommendation string `json:"recommendation"`
	Subject        string `json:"subject"`
}

// Send implements Notifier. The delivery id is the "id" field of a JSON
// response, the X-Request-Id header, or the status line.
func (w *Webhook) Send(ctx context.Context, alert model.Alert) (string, error) {
	info := model.GetAlertInfo(alert.Type)
	payload, err := json.Marshal(webhookPayload{
		Alert:          alert,
		Title:          info.Title,
		Recommendation: info.Recommendation,
		Subject:        Subject(alert),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ack struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(body, &ack) == nil && ack.ID != "" {
		return ack.ID, nil
	}
	if id := resp.Header.Get("X-Request-Id"); id != "" {
		return id, nil
	}
	return resp.Status, nil
}
