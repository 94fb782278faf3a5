package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"persona_relay/internal/entities"
)

// Telegram rejects messages longer than this many characters.
const telegramMaxMessageLength = 4096

type TelegramClient struct {
	Bot *tgbotapi.BotAPI
}

// DefaultTelegramTimeout bounds each Bot API request so a stalled connection cannot hold a
// webhook delivery open.
const DefaultTelegramTimeout = 10 * time.Second

func NewTelegramClient(token string, timeout time.Duration) (*TelegramClient, error) {
	return NewTelegramClientWithEndpoint(token, tgbotapi.APIEndpoint, newBotHTTPClient(timeout))
}

// NewTelegramClientWithEndpoint points the client at a custom Bot API server. The endpoint must
// contain two %s verbs for the token and the method, as in tgbotapi.APIEndpoint. A nil client
// gets one with DefaultTelegramTimeout.
func NewTelegramClientWithEndpoint(token, endpoint string, client *http.Client) (*TelegramClient, error) {
	if client == nil {
		client = newBotHTTPClient(DefaultTelegramTimeout)
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramClient{Bot: bot}, nil
}

func newBotHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTelegramTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (t *TelegramClient) Username() string {
	return t.Bot.Self.UserName
}

// SendMessage sends plain text, split into several messages when it exceeds Telegram's limit.
func (t *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, telegramMaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.Bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return err
		}
	}
	return nil
}

// webAppKeyboard mirrors Telegram's ReplyKeyboardMarkup including the web_app field, which the
// tgbotapi v5 types do not carry.
type webAppKeyboard struct {
	Keyboard       [][]webAppKeyboardButton `json:"keyboard"`
	ResizeKeyboard bool                     `json:"resize_keyboard"`
}

type webAppKeyboardButton struct {
	Text   string      `json:"text"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

type webAppInfo struct {
	URL string `json:"url"`
}

func buildReplyKeyboard(buttons [][]entities.Button) webAppKeyboard {
	kb := webAppKeyboard{ResizeKeyboard: true}
	for _, row := range buttons {
		var kbRow []webAppKeyboardButton
		for _, b := range row {
			btn := webAppKeyboardButton{Text: b.Text}
			if b.WebAppURL != "" {
				btn.WebApp = &webAppInfo{URL: b.WebAppURL}
			}
			kbRow = append(kbRow, btn)
		}
		kb.Keyboard = append(kb.Keyboard, kbRow)
	}
	return kb
}

func (t *TelegramClient) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, buttons [][]entities.Button) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = buildReplyKeyboard(buttons)
	_, err := t.Bot.Send(msg)
	return err
}

func (t *TelegramClient) SendPhoto(ctx context.Context, chatID int64, caption string, png []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "link.png", Bytes: png})
	photo.Caption = caption
	_, err := t.Bot.Send(photo)
	return err
}

// RegisterWebhook points Telegram at link. Deliveries start arriving as soon as this returns.
func (t *TelegramClient) RegisterWebhook(link string) error {
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := t.Bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := limit
		if len(runes) < n {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
