package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/imroc/req/v3"
)

const SinkWebhook = "webhook"

type webhookPayload struct {
	Text string `json:"text"`
}

// Webhook posts {"text": ...} to a Slack incoming webhook or any
// compatible chat webhook
type Webhook struct {
	url    string
	client *req.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:    url,
		client: newHTTPClient(timeout),
	}
}

func (w *Webhook) Name() string {
	return SinkWebhook
}

func (w *Webhook) Notify(ctx context.Context, notice *Notice) (*Delivery, error) {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(&webhookPayload{Text: FormatText(notice)}).
		Post(w.url)
	if err != nil {
		return nil, fmt.Errorf("post webhook: %w", err)
	}

	if !resp.IsSuccessState() {
		return nil, fmt.Errorf("post webhook: %w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return &Delivery{Sink: SinkWebhook}, nil
}

// Finish posts a separate completion message; a webhook cannot edit the
// first one
func (w *Webhook) Finish(ctx context.Context, sum *Summary) (bool, error) {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(&webhookPayload{Text: FormatCompleteText(sum)}).
		Post(w.url)
	if err != nil {
		return false, fmt.Errorf("post webhook: %w", err)
	}

	if !resp.IsSuccessState() {
		return false, fmt.Errorf("post webhook: %w %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return true, nil
}
