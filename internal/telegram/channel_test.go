package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/bot"
	"github.com/alexanderramin/trilium-bot/internal/conversation"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123:abc"

// fakeBotAPI serves the subset of Bot API methods the channel uses.
type fakeBotAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	calls   map[string][]map[string]string
	updates []tgbotapi.Update
	served  bool
	editErr string
	files   map[string][]byte
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{t: t, calls: map[string][]map[string]string{}, files: map[string][]byte{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/") {
		path := strings.TrimPrefix(r.URL.Path, "/file/bot"+testToken+"/")
		f.mu.Lock()
		data, ok := f.files[path]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
		return
	}

	method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
	_ = r.ParseForm()
	params := map[string]string{}
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	f.mu.Lock()
	f.calls[method] = append(f.calls[method], params)
	f.mu.Unlock()

	switch method {
	case "getMe":
		writeOK(w, tgbotapi.User{ID: 1, IsBot: true, UserName: "trilium_bot"})
	case "sendMessage", "editMessageText":
		f.mu.Lock()
		editErr := f.editErr
		f.mu.Unlock()
		if method == "editMessageText" && editErr != "" {
			writeFail(w, editErr)
			return
		}
		writeOK(w, tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: 100}})
	case "answerCallbackQuery", "setMyCommands":
		writeOK(w, true)
	case "getFile":
		id := params["file_id"]
		f.mu.Lock()
		data := f.files[id+".bin"]
		f.mu.Unlock()
		writeOK(w, tgbotapi.File{FileID: id, FileSize: len(data), FilePath: id + ".bin"})
	case "getUpdates":
		f.mu.Lock()
		var updates []tgbotapi.Update
		if !f.served {
			updates = f.updates
			f.served = true
		}
		f.mu.Unlock()
		if len(updates) == 0 {
			time.Sleep(20 * time.Millisecond)
			updates = []tgbotapi.Update{}
		}
		writeOK(w, updates)
	default:
		writeFail(w, "Not Found: method "+method)
	}
}

func writeOK(w http.ResponseWriter, result any) {
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(tgbotapi.APIResponse{Ok: true, Result: raw})
}

func writeFail(w http.ResponseWriter, description string) {
	_ = json.NewEncoder(w).Encode(tgbotapi.APIResponse{Ok: false, ErrorCode: 400, Description: description})
}

func (f *fakeBotAPI) last(method string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls[method]
	require.NotEmpty(f.t, calls, "no %s call", method)
	return calls[len(calls)-1]
}

func (f *fakeBotAPI) channel(t *testing.T) *Channel {
	t.Helper()
	c, err := New(Config{
		Token:        testToken,
		APIEndpoint:  f.srv.URL + "/bot%s/%s",
		FileEndpoint: f.srv.URL + "/file/bot%s/%s",
		PollTimeout:  1,
		Client:       f.srv.Client(),
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, "Unauthorized")
	}))
	defer srv.Close()

	_, err := New(Config{Token: "bad", APIEndpoint: srv.URL + "/bot%s/%s", Client: srv.Client()}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestChannel_SendWithKeyboard(t *testing.T) {
	api := newFakeBotAPI(t)
	c := api.channel(t)

	err := c.Send(context.Background(), 100, conversation.Render{
		Text:    "Main Menu",
		Buttons: [][]conversation.Button{{{Label: "TODO List", Token: "tok1"}, {Label: "ID", Token: "tok2"}}},
	})
	require.NoError(t, err)

	call := api.last("sendMessage")
	assert.Equal(t, "100", call["chat_id"])
	assert.Equal(t, "Main Menu", call["text"])

	var kb tgbotapi.InlineKeyboardMarkup
	require.NoError(t, json.Unmarshal([]byte(call["reply_markup"]), &kb))
	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "TODO List", kb.InlineKeyboard[0][0].Text)
	require.NotNil(t, kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "tok2", *kb.InlineKeyboard[0][1].CallbackData)
}

func TestChannel_SendPlainText(t *testing.T) {
	api := newFakeBotAPI(t)
	c := api.channel(t)

	require.NoError(t, c.Send(context.Background(), 100, conversation.Render{Text: "Saved."}))
	_, hasMarkup := api.last("sendMessage")["reply_markup"]
	assert.False(t, hasMarkup)
}

func TestChannel_EditIgnoresNotModified(t *testing.T) {
	api := newFakeBotAPI(t)
	c := api.channel(t)

	render := conversation.Render{Text: "TODO List", Buttons: [][]conversation.Button{{{Label: "Back", Token: "t"}}}}
	require.NoError(t, c.Edit(context.Background(), 100, 42, render))
	call := api.last("editMessageText")
	assert.Equal(t, "42", call["message_id"])
	assert.Contains(t, call["reply_markup"], "Back")

	api.mu.Lock()
	api.editErr = "Bad Request: message is not modified: specified new message content and reply markup are exactly the same"
	api.mu.Unlock()
	require.NoError(t, c.Edit(context.Background(), 100, 42, render))

	api.mu.Lock()
	api.editErr = "Bad Request: message to edit not found"
	api.mu.Unlock()
	err := c.Edit(context.Background(), 100, 42, render)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message to edit not found")
}

func TestChannel_AnswerAndCommands(t *testing.T) {
	api := newFakeBotAPI(t)
	c := api.channel(t)

	require.NoError(t, c.Answer(context.Background(), "cb-1", "List changed"))
	call := api.last("answerCallbackQuery")
	assert.Equal(t, "cb-1", call["callback_query_id"])
	assert.Equal(t, "List changed", call["text"])

	require.NoError(t, c.SetCommands(context.Background(), []bot.Command{{Name: "todo", Description: "Show the TODO list"}}))
	assert.Contains(t, api.last("setMyCommands")["commands"], `"command":"todo"`)
}

func TestChannel_DownloadFile(t *testing.T) {
	api := newFakeBotAPI(t)
	api.files["doc-1.bin"] = []byte("%PDF-1.4 body")
	c := api.channel(t)

	in, ok := c.inbound(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: 7},
		Chat:      &tgbotapi.Chat{ID: 100},
		Document:  &tgbotapi.Document{FileID: "doc-1", FileName: "report.pdf", FileSize: 13},
	}})
	require.True(t, ok)
	require.Equal(t, conversation.EventFile, in.Event.Kind)
	require.NotNil(t, in.Event.File)
	assert.Equal(t, "report.pdf", in.Event.File.Name)
	assert.EqualValues(t, 13, in.Event.File.Size)

	data, err := in.Event.File.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))
}

func TestChannel_DownloadMissingFile(t *testing.T) {
	api := newFakeBotAPI(t)
	c := api.channel(t)

	_, err := c.download(context.Background(), "gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestChannel_InboundConversion(t *testing.T) {
	api := newFakeBotAPI(t)
	c := api.channel(t)
	user := &tgbotapi.User{ID: 7}
	chat := &tgbotapi.Chat{ID: 100}

	tests := []struct {
		name   string
		update tgbotapi.Update
		want   conversation.Event
		skip   bool
	}{
		{
			name: "text",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				From: user, Chat: chat, Text: "buy milk",
			}},
			want: conversation.Event{ChatID: 100, UserID: 7, Kind: conversation.EventText, Text: "buy milk"},
		},
		{
			name: "command with bot name",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				From: user, Chat: chat, Text: "/todo@trilium_bot",
				Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 17}},
			}},
			want: conversation.Event{ChatID: 100, UserID: 7, Kind: conversation.EventCommand, Text: "todo"},
		},
		{
			name: "command with arguments",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				From: user, Chat: chat, Text: "/rollover 06:30",
				Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 9}},
			}},
			want: conversation.Event{ChatID: 100, UserID: 7, Kind: conversation.EventCommand, Text: "rollover", Args: "06:30"},
		},
		{
			name: "callback",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID: "cb", From: user, Data: "token",
				Message: &tgbotapi.Message{MessageID: 9, Chat: chat},
			}},
			want: conversation.Event{ChatID: 100, UserID: 7, Kind: conversation.EventButton, Token: "token"},
		},
		{
			name:   "channel post without sender",
			update: tgbotapi.Update{Message: &tgbotapi.Message{Chat: chat, Text: "x"}},
			skip:   true,
		},
		{
			name:   "callback without message",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb", From: user}},
			skip:   true,
		},
		{name: "empty update", skip: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ok := c.inbound(tt.update)
			if tt.skip {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, in.Event)
		})
	}
}

func TestChannel_PhotoUsesLargestSize(t *testing.T) {
	api := newFakeBotAPI(t)
	c := api.channel(t)

	in, ok := c.inbound(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 100},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", FileSize: 100},
			{FileID: "large", FileSize: 9000},
		},
	}})
	require.True(t, ok)
	require.NotNil(t, in.Event.File)
	assert.EqualValues(t, 9000, in.Event.File.Size)
	assert.Equal(t, "photo.jpg", in.Event.File.Name)
}

func TestChannel_CallbackCarriesIDs(t *testing.T) {
	api := newFakeBotAPI(t)
	c := api.channel(t)

	in, ok := c.inbound(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb-9", From: &tgbotapi.User{ID: 7}, Data: "t",
		Message: &tgbotapi.Message{MessageID: 33, Chat: &tgbotapi.Chat{ID: 100}},
	}})
	require.True(t, ok)
	assert.Equal(t, "cb-9", in.CallbackID)
	assert.Equal(t, 33, in.MessageID)
}

func TestChannel_EventsStreamsUpdatesUntilCancelled(t *testing.T) {
	api := newFakeBotAPI(t)
	api.updates = []tgbotapi.Update{{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 3, From: &tgbotapi.User{ID: 7}, Chat: &tgbotapi.Chat{ID: 100}, Text: "hello",
		},
	}}
	c := api.channel(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := c.Events(ctx)
	require.NoError(t, err)

	select {
	case in := <-events:
		assert.Equal(t, "hello", in.Event.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("no update delivered")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-events:
			return !open
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}
