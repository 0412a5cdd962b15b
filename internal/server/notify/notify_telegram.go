package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"
)

const SinkTelegram = "telegram"

type Telegram struct {
	bot  *tele.Bot
	chat tele.ChatID
}

func NewTelegram(cfg TelegramConfig, timeout time.Duration) (*Telegram, error) {
	if cfg.ChatID == 0 {
		return nil, ErrTelegramChatID
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}

	// offline: no getMe round trip at startup, the bot only sends
	bot, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{bot: bot, chat: tele.ChatID(cfg.ChatID)}, nil
}

func (t *Telegram) Name() string {
	return SinkTelegram
}

// Notify sends the message. telebot has no context support, so a cancelled
// ctx only stops the wait; the http client timeout bounds the request.
func (t *Telegram) Notify(ctx context.Context, notice *Notice) (*Delivery, error) {
	type result struct {
		msg *tele.Message
		err error
	}

	done := make(chan result, 1)
	go func() {
		msg, err := t.bot.Send(t.chat, FormatText(notice), &tele.SendOptions{DisableWebPagePreview: true})
		done <- result{msg, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("telegram send: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("telegram send: %w", r.err)
		}
		return &Delivery{
			Sink:    SinkTelegram,
			Channel: strconv.FormatInt(int64(t.chat), 10),
			Ref:     strconv.Itoa(r.msg.ID),
		}, nil
	}
}

// Finish edits the first-seen message when it was sent by this bot
func (t *Telegram) Finish(ctx context.Context, sum *Summary) (bool, error) {
	if sum.Sink != SinkTelegram || sum.Ref == "" {
		return false, nil
	}

	chatID := int64(t.chat)
	if sum.Channel != "" {
		id, err := strconv.ParseInt(sum.Channel, 10, 64)
		if err != nil {
			return false, fmt.Errorf("telegram chat id %q: %w", sum.Channel, err)
		}
		chatID = id
	}

	msg := tele.StoredMessage{MessageID: sum.Ref, ChatID: chatID}
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Edit(msg, FormatCompleteText(sum), &tele.SendOptions{DisableWebPagePreview: true})
		done <- err
	}()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("telegram edit: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return false, fmt.Errorf("telegram edit: %w", err)
		}
		return true, nil
	}
}
