package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/hitoshi/sniper/internal/model"
)

// telegramMaxTextLength はTelegramの1メッセージあたりの最大文字数。
const telegramMaxTextLength = 4096

// TelegramConfig はTelegramNotifierの設定を保持する。
type TelegramConfig struct {
	Token       string
	ChatID      string     // 数値のチャットID、または "@channelname"
	APIEndpoint string     // 空の場合はライブラリのデフォルト
	RatePerSec  rate.Limit // 送信レート。0以下の場合は制限しない
	HTTPClient  *http.Client
}

// TelegramNotifier はTelegram Bot API経由で通知を送信するNotifier。
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	channel string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewTelegramNotifier はTelegramNotifierを生成する。
// 生成時にgetMeを呼び出してトークンを検証する。
func NewTelegramNotifier(cfg TelegramConfig, logger *slog.Logger) (*TelegramNotifier, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("Telegram Botの初期化に失敗しました: %w", err)
	}

	n := &TelegramNotifier{bot: bot, logger: logger}

	switch {
	case strings.HasPrefix(cfg.ChatID, "@"):
		n.channel = cfg.ChatID
	default:
		id, err := strconv.ParseInt(cfg.ChatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID が不正です: %q: %w", cfg.ChatID, err)
		}
		n.chatID = id
	}

	limit := cfg.RatePerSec
	if limit <= 0 {
		limit = rate.Inf
	}
	n.limiter = rate.NewLimiter(limit, 1)

	logger.Debug("Telegram Botを初期化しました",
		slog.String("bot_username", bot.Self.UserName),
	)

	return n, nil
}

// Publish は件名、空行、本文の順に並べたプレーンテキストを送信する。
func (n *TelegramNotifier) Publish(ctx context.Context, msg model.Notification) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("送信待機が中断されました: %w", err)
	}

	text := truncateRunes(msg.Subject+"\n\n"+msg.Body, telegramMaxTextLength)

	var chattable tgbotapi.MessageConfig
	if n.channel != "" {
		chattable = tgbotapi.NewMessageToChannel(n.channel, text)
	} else {
		chattable = tgbotapi.NewMessage(n.chatID, text)
	}

	sent, err := n.bot.Send(chattable)
	if err != nil {
		return fmt.Errorf("Telegramへの送信に失敗しました: %w", err)
	}

	n.logger.DebugContext(ctx, "Telegramへ通知を送信しました",
		slog.Int("message_id", sent.MessageID),
	)
	return nil
}
