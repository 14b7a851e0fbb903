package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/sniper/internal/model"
)

// fakeTelegramServer はgetMeとsendMessageに応答するTelegram Bot APIのモック。
type fakeTelegramServer struct {
	mu       sync.Mutex
	messages []map[string]string
	failSend bool
}

func (f *fakeTelegramServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"id": 1, "is_bot": true, "first_name": "sniper", "username": "sniper_bot"},
			})
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if f.failSend {
				json.NewEncoder(w).Encode(map[string]any{
					"ok": false, "error_code": 400, "description": "Bad Request: chat not found",
				})
				return
			}
			if err := r.ParseForm(); err != nil {
				t.Errorf("フォームの解析に失敗: %v", err)
			}
			f.mu.Lock()
			f.messages = append(f.messages, map[string]string{
				"chat_id": r.PostForm.Get("chat_id"),
				"text":    r.PostForm.Get("text"),
			})
			f.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"result": map[string]any{
					"message_id": 42,
					"date":       0,
					"chat":       map[string]any{"id": 100, "type": "private"},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}
}

func newFakeTelegram(t *testing.T) (*fakeTelegramServer, string) {
	t.Helper()
	fake := &fakeTelegramServer{}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	return fake, server.URL + "/bot%s/%s"
}

func TestTelegramNotifier_PublishesPlainText(t *testing.T) {
	fake, endpoint := newFakeTelegram(t)
	logger, _ := newTestLogger()

	n, err := NewTelegramNotifier(TelegramConfig{
		Token:       "test-token",
		ChatID:      "100",
		APIEndpoint: endpoint,
	}, logger)
	if err != nil {
		t.Fatalf("NewTelegramNotifier がエラーを返した: %v", err)
	}

	msg := model.Notification{Subject: "Honda - $1,000", Body: "Honda\n\nclean\n\nhttps://example.com/listing/1"}
	if err := n.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish がエラーを返した: %v", err)
	}

	if len(fake.messages) != 1 {
		t.Fatalf("送信数 = %d, want 1", len(fake.messages))
	}
	got := fake.messages[0]
	if got["chat_id"] != "100" {
		t.Errorf("chat_id = %q, want %q", got["chat_id"], "100")
	}
	want := "Honda - $1,000\n\nHonda\n\nclean\n\nhttps://example.com/listing/1"
	if got["text"] != want {
		t.Errorf("text = %q, want %q", got["text"], want)
	}
}

func TestTelegramNotifier_ChannelChatID(t *testing.T) {
	fake, endpoint := newFakeTelegram(t)
	logger, _ := newTestLogger()

	n, err := NewTelegramNotifier(TelegramConfig{
		Token:       "test-token",
		ChatID:      "@sniper_alerts",
		APIEndpoint: endpoint,
	}, logger)
	if err != nil {
		t.Fatalf("NewTelegramNotifier がエラーを返した: %v", err)
	}

	if err := n.Publish(context.Background(), model.Notification{Subject: "s", Body: "b"}); err != nil {
		t.Fatalf("Publish がエラーを返した: %v", err)
	}
	if fake.messages[0]["chat_id"] != "@sniper_alerts" {
		t.Errorf("chat_id = %q, want @sniper_alerts", fake.messages[0]["chat_id"])
	}
}

func TestTelegramNotifier_InvalidChatID(t *testing.T) {
	_, endpoint := newFakeTelegram(t)
	logger, _ := newTestLogger()

	_, err := NewTelegramNotifier(TelegramConfig{
		Token:       "test-token",
		ChatID:      "not-a-number",
		APIEndpoint: endpoint,
	}, logger)
	if err == nil {
		t.Fatal("不正なチャットIDはエラーになるべき")
	}
}

func TestTelegramNotifier_SendFailureReturnsError(t *testing.T) {
	fake, endpoint := newFakeTelegram(t)
	logger, _ := newTestLogger()

	n, err := NewTelegramNotifier(TelegramConfig{
		Token:       "test-token",
		ChatID:      "100",
		APIEndpoint: endpoint,
	}, logger)
	if err != nil {
		t.Fatalf("NewTelegramNotifier がエラーを返した: %v", err)
	}
	fake.failSend = true

	if err := n.Publish(context.Background(), model.Notification{Subject: "s", Body: "b"}); err == nil {
		t.Fatal("APIがエラーを返した場合はエラーになるべき")
	}
}

func TestTelegramNotifier_WaitRespectsContext(t *testing.T) {
	_, endpoint := newFakeTelegram(t)
	logger, _ := newTestLogger()

	n, err := NewTelegramNotifier(TelegramConfig{
		Token:       "test-token",
		ChatID:      "100",
		APIEndpoint: endpoint,
		RatePerSec:  0.001,
	}, logger)
	if err != nil {
		t.Fatalf("NewTelegramNotifier がエラーを返した: %v", err)
	}

	ctx := context.Background()
	if err := n.Publish(ctx, model.Notification{Subject: "s", Body: "b"}); err != nil {
		t.Fatalf("1回目の Publish がエラーを返した: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := n.Publish(cancelled, model.Notification{Subject: "s", Body: "b"}); err == nil {
		t.Fatal("キャンセル済みのコンテキストでは送信待機がエラーになるべき")
	}
}
