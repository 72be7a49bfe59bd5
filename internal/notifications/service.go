package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loomline/internal/config"
)

const userAgent = "Loomline/0.1.0"

// Service defines the notification surface exposed to workflow components.
// Implementations must be safe for concurrent use.
type Service interface {
	NotifyStageActivated(ctx context.Context, productCode, stageName, role string) error
	NotifyStageCompleted(ctx context.Context, productCode, stageName, nextStageName, nextRole string) error
	NotifyWorkStarted(ctx context.Context, workerName, productCode, stageName, role string) error
	NotifyMaterialRequested(ctx context.Context, productCode, stageName, requesterName, reason string) error
	NotifyMaterialPurchased(ctx context.Context, productCode, requesterRole, expectedDelivery, note string) error
	NotifyProductWarehoused(ctx context.Context, productCode, productName string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a Telegram-backed notifier when a bot token is
// configured; otherwise a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	token := strings.TrimSpace(cfg.Telegram.BotToken)
	if token == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Telegram.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &telegramService{
		endpoint:  fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(cfg.Telegram.BaseURL, "/"), token),
		client:    &http.Client{Timeout: timeout},
		chats:     cfg.Telegram.Chats,
		adminChat: cfg.Telegram.AdminChat,
		stage:     cfg.Telegram.StageEvents,
		worker:    cfg.Telegram.WorkerEvents,
		material:  cfg.Telegram.MaterialEvents,
		warehouse: cfg.Telegram.WarehouseEvent,
	}
}

type telegramService struct {
	endpoint  string
	client    *http.Client
	chats     map[string]string
	adminChat string
	stage     bool
	worker    bool
	material  bool
	warehouse bool
}

// chatFor resolves the department chat for a role, falling back to the admin
// chat when the role has no mapping.
func (t *telegramService) chatFor(role string) string {
	if chat, ok := t.chats[strings.ToUpper(strings.TrimSpace(role))]; ok && chat != "" {
		return chat
	}
	return t.adminChat
}

func (t *telegramService) NotifyStageActivated(ctx context.Context, productCode, stageName, role string) error {
	if !t.stage {
		return nil
	}
	text := fmt.Sprintf("🧵 Sản phẩm %s đã vào công đoạn %s", productCode, stageName)
	return t.send(ctx, t.chatFor(role), text)
}

func (t *telegramService) NotifyStageCompleted(ctx context.Context, productCode, stageName, nextStageName, nextRole string) error {
	if !t.stage {
		return nil
	}
	text := fmt.Sprintf("✅ Sản phẩm %s hoàn thành công đoạn %s", productCode, stageName)
	if nextStageName != "" {
		text = fmt.Sprintf("%s, chuyển sang %s", text, nextStageName)
		return t.send(ctx, t.chatFor(nextRole), text)
	}
	return t.send(ctx, t.adminChat, text)
}

func (t *telegramService) NotifyWorkStarted(ctx context.Context, workerName, productCode, stageName, role string) error {
	if !t.worker {
		return nil
	}
	text := fmt.Sprintf("▶️ %s bắt đầu làm %s (%s)", workerName, productCode, stageName)
	return t.send(ctx, t.chatFor(role), text)
}

func (t *telegramService) NotifyMaterialRequested(ctx context.Context, productCode, stageName, requesterName, reason string) error {
	if !t.material {
		return nil
	}
	text := fmt.Sprintf("📦 %s báo thiếu vật tư cho %s (%s): %s", requesterName, productCode, stageName, reason)
	return t.send(ctx, t.chatFor("THU_MUA"), text)
}

func (t *telegramService) NotifyMaterialPurchased(ctx context.Context, productCode, requesterRole, expectedDelivery, note string) error {
	if !t.material {
		return nil
	}
	text := fmt.Sprintf("🛒 Vật tư cho %s đã được đặt mua", productCode)
	if expectedDelivery != "" {
		text = fmt.Sprintf("%s, dự kiến giao %s", text, expectedDelivery)
	}
	if note != "" {
		text = fmt.Sprintf("%s\n%s", text, note)
	}
	return t.send(ctx, t.chatFor(requesterRole), text)
}

func (t *telegramService) NotifyProductWarehoused(ctx context.Context, productCode, productName string) error {
	if !t.warehouse {
		return nil
	}
	text := fmt.Sprintf("🏬 Sản phẩm %s (%s) đã hoàn tất và nhập kho", productCode, productName)
	return t.send(ctx, t.adminChat, text)
}

func (t *telegramService) TestNotification(ctx context.Context) error {
	return t.send(ctx, t.adminChat, "🧪 Loomline notification test")
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (t *telegramService) send(ctx context.Context, chatID, text string) error {
	if t == nil || t.client == nil {
		return nil
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStageActivated(context.Context, string, string, string) error { return nil }
func (noopService) NotifyStageCompleted(context.Context, string, string, string, string) error {
	return nil
}
func (noopService) NotifyWorkStarted(context.Context, string, string, string, string) error {
	return nil
}
func (noopService) NotifyMaterialRequested(context.Context, string, string, string, string) error {
	return nil
}
func (noopService) NotifyMaterialPurchased(context.Context, string, string, string, string) error {
	return nil
}
func (noopService) NotifyProductWarehoused(context.Context, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
