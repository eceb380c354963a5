package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/subvote/internal/review"
)

// DefaultTelegramBaseURL is the Bot API root.
const DefaultTelegramBaseURL = "https://api.telegram.org"

// Telegram is a minimal Bot API client bound to one review group chat.
type Telegram struct {
	token      string
	chatID     string
	baseURL    *url.URL
	HTTPClient *http.Client
}

// TelegramError is a Bot API call that returned ok=false or a non-2xx status.
type TelegramError struct {
	Method      string
	Code        int
	Description string
}

// Error implements the error interface.
func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// IsNotModified reports whether err is Telegram refusing an edit that changes nothing.
func IsNotModified(err error) bool {
	var te *TelegramError
	return errors.As(err, &te) && strings.Contains(te.Description, "message is not modified")
}

// NewTelegram creates a client. An empty baseURL selects DefaultTelegramBaseURL.
func NewTelegram(token, groupChatID, baseURL string) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram: missing bot token")
	}
	if baseURL == "" {
		baseURL = DefaultTelegramBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("telegram: parse base url: %w", err)
	}
	return &Telegram{
		token:      token,
		chatID:     groupChatID,
		baseURL:    u,
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
	}, nil
}

// GroupChatID returns the review chat id.
func (t *Telegram) GroupChatID() string { return t.chatID }

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

// keyboard renders one button per row. Terminal messages get an empty
// keyboard, which removes any existing buttons on edit.
func keyboard(actions []review.Action) *replyMarkup {
	rows := make([][]inlineButton, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, []inlineButton{{Text: a.Label, CallbackData: a.Data}})
	}
	return &replyMarkup{InlineKeyboard: rows}
}

type sendMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	Text        string       `json:"text"`
	ParseMode   string       `json:"parse_mode,omitempty"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type editMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	MessageID   int64        `json:"message_id"`
	Text        string       `json:"text"`
	ParseMode   string       `json:"parse_mode"`
	ReplyMarkup *replyMarkup `json:"reply_markup"`
}

// PostReviewMessage sends msg to the review chat and returns its message id.
func (t *Telegram) PostReviewMessage(ctx context.Context, msg review.Message) (string, error) {
	var sent Message
	err := t.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:      t.chatID,
		Text:        msg.Text(),
		ParseMode:   "HTML",
		ReplyMarkup: keyboard(msg.Actions()),
	}, &sent)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(sent.MessageID, 10), nil
}

// EditMessage replaces the text and buttons of a review message.
// Editing to identical content is not an error.
func (t *Telegram) EditMessage(ctx context.Context, messageID string, msg review.Message) error {
	id, err := strconv.ParseInt(messageID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram editMessageText: invalid message id %q", messageID)
	}
	err = t.call(ctx, "editMessageText", editMessageRequest{
		ChatID:      t.chatID,
		MessageID:   id,
		Text:        msg.Text(),
		ParseMode:   "HTML",
		ReplyMarkup: keyboard(msg.Actions()),
	}, nil)
	if IsNotModified(err) {
		return nil
	}
	return err
}

// SendText sends a plain message to any chat.
func (t *Telegram) SendText(ctx context.Context, chatID, text string) error {
	return t.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text}, nil)
}

// AnswerCallback acknowledges a button press, optionally as a modal alert.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	return t.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
		"show_alert":        alert,
	}, nil)
}

// GetUpdates long-polls for updates with id >= offset.
func (t *Telegram) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := t.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message", "callback_query"},
	}, &updates)
	return updates, err
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func (t *Telegram) call(ctx context.Context, method string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode request: %w", method, err)
	}

	endpoint := t.baseURL.JoinPath("bot"+t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		// The token is part of the URL; keep it out of error strings.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &TelegramError{Method: method, Code: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
	}
	if !envelope.OK || resp.StatusCode/100 != 2 {
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &TelegramError{Method: method, Code: code, Description: envelope.Description}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}
