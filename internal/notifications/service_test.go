package notifications_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"loomline/internal/notifications"
	"loomline/internal/testsupport"
)

type captured struct {
	path   string
	chatID string
	text   string
}

func newCaptureServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()

	var (
		mu   sync.Mutex
		sent []captured
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		var payload struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		sent = append(sent, captured{path: r.URL.Path, chatID: payload.ChatID, text: payload.Text})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), sent...)
	}
}

func TestNewServiceReturnsNoopWithoutToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	service := notifications.NewService(cfg)
	if err := service.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop TestNotification returned error: %v", err)
	}
}

func TestNotifyRoutesToDepartmentChat(t *testing.T) {
	server, sentFn := newCaptureServer(t)

	cfg := testsupport.NewConfig(t, testsupport.WithTelegram("token-1", server.URL, "admin-chat"))
	cfg.Telegram.Chats = map[string]string{"CAT": "cat-chat"}
	cfg.Telegram.StageEvents = true

	service := notifications.NewService(cfg)
	if err := service.NotifyStageActivated(context.Background(), "AO-001", "CẮT", "CAT"); err != nil {
		t.Fatalf("NotifyStageActivated failed: %v", err)
	}

	sent := sentFn()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].chatID != "cat-chat" {
		t.Fatalf("expected department chat, got %q", sent[0].chatID)
	}
	if !strings.Contains(sent[0].text, "AO-001") || !strings.Contains(sent[0].text, "CẮT") {
		t.Fatalf("unexpected message text: %q", sent[0].text)
	}
	if !strings.Contains(sent[0].path, "/bottoken-1/sendMessage") {
		t.Fatalf("unexpected request path: %q", sent[0].path)
	}
}

func TestNotifyFallsBackToAdminChat(t *testing.T) {
	server, sentFn := newCaptureServer(t)

	cfg := testsupport.NewConfig(t, testsupport.WithTelegram("token-1", server.URL, "admin-chat"))
	cfg.Telegram.WarehouseEvent = true

	service := notifications.NewService(cfg)
	if err := service.NotifyProductWarehoused(context.Background(), "AO-001", "Áo sơ mi"); err != nil {
		t.Fatalf("NotifyProductWarehoused failed: %v", err)
	}

	sent := sentFn()
	if len(sent) != 1 || sent[0].chatID != "admin-chat" {
		t.Fatalf("expected admin chat fallback, got %#v", sent)
	}
}

func TestDisabledEventsAreSilent(t *testing.T) {
	server, sentFn := newCaptureServer(t)

	cfg := testsupport.NewConfig(t, testsupport.WithTelegram("token-1", server.URL, "admin-chat"))
	cfg.Telegram.MaterialEvents = false

	service := notifications.NewService(cfg)
	if err := service.NotifyMaterialRequested(context.Background(), "AO-001", "CẮT", "Lan", "thiếu vải"); err != nil {
		t.Fatalf("NotifyMaterialRequested failed: %v", err)
	}
	if sent := sentFn(); len(sent) != 0 {
		t.Fatalf("expected no messages for a disabled event, got %d", len(sent))
	}
}
