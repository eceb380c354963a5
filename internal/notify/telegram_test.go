package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/review"
)

func setupTelegram(t *testing.T, handlers map[string]http.HandlerFunc) *Telegram {
	t.Helper()

	mux := http.NewServeMux()
	for method, h := range handlers {
		mux.HandleFunc("POST /botTOKEN/"+method, h)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	tg, err := NewTelegram("TOKEN", "-1001", server.URL)
	require.NoError(t, err)
	tg.HTTPClient = server.Client()
	return tg
}

func reply(rw http.ResponseWriter, status int, body string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_, _ = rw.Write([]byte(body))
}

func pendingMessage() review.Message {
	return review.Render(model.Application{
		ID:             5,
		Kind:           model.RequestCreate,
		Username:       "alice",
		Name:           "blog.example.org",
		RecordType:     model.RecordA,
		RecordValue:    "203.0.113.7",
		Status:         model.StatusPending,
		VotingDeadline: time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC),
	}, nil, nil)
}

func TestTelegram_PostReviewMessage(t *testing.T) {
	tg := setupTelegram(t, map[string]http.HandlerFunc{
		"sendMessage": func(rw http.ResponseWriter, req *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "-1001", body["chat_id"])
			assert.Equal(t, "HTML", body["parse_mode"])

			markup := body["reply_markup"].(map[string]any)
			rows := markup["inline_keyboard"].([]any)
			require.Len(t, rows, 2)
			first := rows[0].([]any)[0].(map[string]any)
			assert.Equal(t, "vote_approve_5", first["callback_data"])

			reply(rw, http.StatusOK, `{"ok":true,"result":{"message_id":777,"chat":{"id":-1001,"type":"supergroup"}}}`)
		},
	})

	id, err := tg.PostReviewMessage(context.Background(), pendingMessage())

	require.NoError(t, err)
	assert.Equal(t, "777", id)
}

func TestTelegram_EditMessage_TerminalStripsButtons(t *testing.T) {
	tg := setupTelegram(t, map[string]http.HandlerFunc{
		"editMessageText": func(rw http.ResponseWriter, req *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, float64(777), body["message_id"])

			markup := body["reply_markup"].(map[string]any)
			assert.Empty(t, markup["inline_keyboard"])

			reply(rw, http.StatusOK, `{"ok":true,"result":true}`)
		},
	})

	terminal := review.Terminal{Status: model.StatusRejected, Reason: "voting closed (approve=1, deny=1)"}
	require.NoError(t, tg.EditMessage(context.Background(), "777", terminal))
}

func TestTelegram_EditMessage_NotModifiedIsTolerated(t *testing.T) {
	tg := setupTelegram(t, map[string]http.HandlerFunc{
		"editMessageText": func(rw http.ResponseWriter, _ *http.Request) {
			reply(rw, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified: specified new message content and reply markup are exactly the same"}`)
		},
	})

	assert.NoError(t, tg.EditMessage(context.Background(), "777", pendingMessage()))
}

func TestTelegram_EditMessage_OtherErrorsSurface(t *testing.T) {
	tg := setupTelegram(t, map[string]http.HandlerFunc{
		"editMessageText": func(rw http.ResponseWriter, _ *http.Request) {
			reply(rw, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`)
		},
	})

	err := tg.EditMessage(context.Background(), "777", pendingMessage())

	var te *TelegramError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 400, te.Code)
	assert.False(t, IsNotModified(err))
}

func TestTelegram_EditMessage_InvalidID(t *testing.T) {
	tg := setupTelegram(t, nil)

	assert.Error(t, tg.EditMessage(context.Background(), "abc", pendingMessage()))
}

func TestTelegram_GetUpdates(t *testing.T) {
	tg := setupTelegram(t, map[string]http.HandlerFunc{
		"getUpdates": func(rw http.ResponseWriter, req *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, float64(10), body["offset"])
			assert.Equal(t, float64(30), body["timeout"])

			reply(rw, http.StatusOK, `{"ok":true,"result":[
				{"update_id":10,"callback_query":{"id":"cb1","from":{"id":42,"username":"carol"},"data":"vote_approve_5",
					"message":{"message_id":777,"chat":{"id":-1001,"type":"supergroup"}}}},
				{"update_id":11,"message":{"message_id":3,"from":{"id":42},"chat":{"id":42,"type":"private"},"text":"/help"}}
			]}`)
		},
	})

	updates, err := tg.GetUpdates(context.Background(), 10, 30*time.Second)

	require.NoError(t, err)
	require.Len(t, updates, 2)
	require.NotNil(t, updates[0].CallbackQuery)
	assert.Equal(t, "42", updates[0].CallbackQuery.From.IDString())
	assert.Equal(t, "vote_approve_5", updates[0].CallbackQuery.Data)
	require.NotNil(t, updates[1].Message)
	assert.Equal(t, "private", updates[1].Message.Chat.Type)
}

func TestTelegram_AnswerCallbackAndSendText(t *testing.T) {
	var answered, sent bool
	tg := setupTelegram(t, map[string]http.HandlerFunc{
		"answerCallbackQuery": func(rw http.ResponseWriter, req *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "cb1", body["callback_query_id"])
			assert.Equal(t, true, body["show_alert"])
			answered = true
			reply(rw, http.StatusOK, `{"ok":true,"result":true}`)
		},
		"sendMessage": func(rw http.ResponseWriter, _ *http.Request) {
			sent = true
			reply(rw, http.StatusOK, `{"ok":true,"result":{"message_id":1,"chat":{"id":42,"type":"private"}}}`)
		},
	})

	ctx := context.Background()
	require.NoError(t, tg.AnswerCallback(ctx, "cb1", "Voting has closed.", true))
	require.NoError(t, tg.SendText(ctx, "42", "hello"))
	assert.True(t, answered)
	assert.True(t, sent)
}

func TestNewTelegram_RequiresToken(t *testing.T) {
	_, err := NewTelegram("", "-1", "")
	assert.Error(t, err)
}
