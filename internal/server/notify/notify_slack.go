package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/imroc/req/v3"
)

const SinkSlackBot = "slack_bot"

// chat.update errors that no retry can fix
var slackPermanentUpdateErrors = map[string]bool{
	"message_not_found":   true,
	"cant_update_message": true,
	"edit_window_closed":  true,
	"channel_not_found":   true,
}

type slackPostMessage struct {
	Channel     string `json:"channel"`
	Text        string `json:"text"`
	UnfurlLinks bool   `json:"unfurl_links"`
}

type slackUpdateMessage struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
	Text    string `json:"text"`
}

type slackResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

// SlackBot posts through chat.postMessage and returns the channel and ts
// so the message can be edited later
type SlackBot struct {
	channel string
	client  *req.Client
}

func NewSlackBot(cfg SlackConfig, timeout time.Duration) *SlackBot {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultSlackAPIURL
	}

	return &SlackBot{
		channel: cfg.Channel,
		client: newHTTPClient(timeout).
			SetBaseURL(strings.TrimSuffix(apiURL, "/")).
			SetCommonBearerAuthToken(cfg.BotToken),
	}
}

func (s *SlackBot) Name() string {
	return SinkSlackBot
}

func (s *SlackBot) Notify(ctx context.Context, notice *Notice) (*Delivery, error) {
	var result slackResponse

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&slackPostMessage{
			Channel: s.channel,
			Text:    FormatText(notice),
		}).
		SetSuccessResult(&result).
		Post("/chat.postMessage")
	if err != nil {
		return nil, fmt.Errorf("slack chat.postMessage: %w", err)
	}

	if !resp.IsSuccessState() {
		return nil, fmt.Errorf("slack chat.postMessage: %w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	// slack reports failures with 200 and ok=false
	if !result.OK {
		return nil, fmt.Errorf("slack chat.postMessage: %w: %s", ErrSlackAPI, result.Error)
	}

	channel := result.Channel
	if channel == "" {
		channel = s.channel
	}

	return &Delivery{Sink: SinkSlackBot, Channel: channel, Ref: result.TS}, nil
}

// Finish edits the first-seen message in place through chat.update. Folders
// announced by another sink, or without a saved ts, are left alone.
func (s *SlackBot) Finish(ctx context.Context, sum *Summary) (bool, error) {
	if sum.Sink != SinkSlackBot || sum.Ref == "" {
		return false, nil
	}

	channel := sum.Channel
	if channel == "" {
		channel = s.channel
	}

	var result slackResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&slackUpdateMessage{
			Channel: channel,
			TS:      sum.Ref,
			Text:    FormatCompleteText(sum),
		}).
		SetSuccessResult(&result).
		Post("/chat.update")
	if err != nil {
		return false, fmt.Errorf("slack chat.update: %w", err)
	}

	if !resp.IsSuccessState() {
		return false, fmt.Errorf("slack chat.update: %w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if !result.OK {
		if slackPermanentUpdateErrors[result.Error] {
			slog.Warn("slack message cannot be updated", "folder", sum.FolderPath(), "ts", sum.Ref, "error", result.Error)
			return false, nil
		}
		return false, fmt.Errorf("slack chat.update: %w: %s", ErrSlackAPI, result.Error)
	}
	return true, nil
}
