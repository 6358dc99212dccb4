package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"joby/internal/domain"
)

// maxDocumentBytes caps the size of an uploaded CV the adapter will pull.
const maxDocumentBytes = 20 * 1024 * 1024

// TelegramOption configures the Telegram channel.
type TelegramOption func(*TelegramChannel)

// WithTelegramBaseURL overrides the Bot API host, used in tests.
func WithTelegramBaseURL(url string) TelegramOption {
	return func(t *TelegramChannel) { t.baseURL = url }
}

// WithTelegramSendLimit tunes the outbound rate limiter.
func WithTelegramSendLimit(perSecond float64, burst int) TelegramOption {
	return func(t *TelegramChannel) { t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// TelegramChannel implements domain.Channel for the Telegram Bot API via
// long-polling. Each inbound message becomes one orchestrator turn;
// uploaded documents are fetched through getFile before the turn runs.
type TelegramChannel struct {
	token   string
	handler domain.TurnHandler
	logger  *slog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	offset  int64
	done    chan struct{}
}

// NewTelegramChannel creates a Telegram bot channel.
func NewTelegramChannel(token string, logger *slog.Logger, opts ...TelegramOption) *TelegramChannel {
	t := &TelegramChannel{
		token:   token,
		logger:  logger,
		baseURL: "https://api.telegram.org",
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start begins long-polling for updates. Non-blocking (starts in goroutine).
func (t *TelegramChannel) Start(ctx context.Context, handler domain.TurnHandler) error {
	t.handler = handler
	go t.pollLoop(ctx)
	t.logger.Info("telegram channel started")
	return nil
}

// Stop signals the polling loop to stop.
func (t *TelegramChannel) Stop(_ context.Context) error {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
	return nil
}

// Send delivers an unsolicited message to a chat, rate limited.
func (t *TelegramChannel) Send(ctx context.Context, channelUserID, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.sendMessage(ctx, channelUserID, text)
}

// Name implements domain.Channel.
func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) pollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
			updates, err := t.getUpdates(ctx)
			if err != nil {
				t.logger.Warn("telegram getUpdates failed", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}

			for _, u := range updates {
				if u.UpdateID >= t.offset {
					t.offset = u.UpdateID + 1
				}
				if u.Message == nil || u.Message.From == nil {
					continue
				}
				t.handleMessage(ctx, u.Message)
			}
		}
	}
}

// handleMessage converts one Telegram message into a turn and delivers
// the reply.
func (t *TelegramChannel) handleMessage(ctx context.Context, msg *telegramMessage) {
	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	if content == "" && msg.Document == nil {
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	input := domain.TurnInput{
		ChannelType:   t.Name(),
		ChannelUserID: chatID,
		IsBot:         msg.From.IsBot,
		DisplayName:   displayName(msg.From),
		Username:      msg.From.Username,
		UserInput:     content,
	}

	if msg.Document != nil {
		format, ok := documentFormat(msg.Document.FileName)
		if !ok {
			t.reply(ctx, chatID, "I can only read PDF, DOCX or plain-text CVs. Could you re-send in one of those formats?")
			return
		}
		data, err := t.downloadDocument(ctx, msg.Document.FileID)
		if err != nil {
			t.logger.Warn("telegram document download failed", "chat_id", chatID, "error", err)
			t.reply(ctx, chatID, "I couldn't download that file. Please try uploading it again.")
			return
		}
		input.Document = data
		input.DocumentName = msg.Document.FileName
		input.DocumentFormat = format
	}

	// Analysis can take a while; show the user something is happening.
	t.sendChatAction(ctx, chatID, "typing")

	output, err := t.handler(ctx, input)
	if err != nil {
		t.logger.Error("telegram turn failed", "chat_id", chatID, "error", err)
		t.reply(ctx, chatID, "Something went wrong on my side. Please try again shortly.")
		return
	}
	t.reply(ctx, chatID, output.Reply)
}

func (t *TelegramChannel) reply(ctx context.Context, chatID, text string) {
	if text == "" {
		return
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return
	}
	if err := t.sendMessage(ctx, chatID, text); err != nil {
		t.logger.Error("telegram send failed", "chat_id", chatID, "error", err)
	}
}

// documentFormat maps a filename extension to a supported CV format.
func documentFormat(name string) (domain.DocumentFormat, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return domain.DocumentPDF, true
	case ".docx", ".doc":
		return domain.DocumentDOCX, true
	case ".txt", ".md":
		return domain.DocumentTXT, true
	default:
		return "", false
	}
}

func displayName(u *telegramUser) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

// --- Telegram Bot API types ---

type telegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type telegramDocument struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
}

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64             `json:"message_id"`
	From      *telegramUser     `json:"from,omitempty"`
	Chat      telegramChat      `json:"chat"`
	Text      string            `json:"text"`
	Caption   string            `json:"caption"`
	Document  *telegramDocument `json:"document,omitempty"`
}

type telegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type telegramUpdateResponse struct {
	OK     bool             `json:"ok"`
	Result []telegramUpdate `json:"result"`
}

type telegramSendRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type telegramActionRequest struct {
	ChatID string `json:"chat_id"`
	Action string `json:"action"`
}

type telegramFileResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		FilePath string `json:"file_path"`
	} `json:"result"`
}

func (t *TelegramChannel) getUpdates(ctx context.Context) ([]telegramUpdate, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=30", t.baseURL, t.token, t.offset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram API error %d: %s", resp.StatusCode, string(body))
	}

	var result telegramUpdateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if !result.OK {
		return nil, fmt.Errorf("telegram API returned ok=false")
	}

	return result.Result, nil
}

// downloadDocument resolves a file_id to a path via getFile and pulls
// the file bytes.
func (t *TelegramChannel) downloadDocument(ctx context.Context, fileID string) ([]byte, error) {
	url := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", t.baseURL, t.token, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var file telegramFileResponse
	if err := json.Unmarshal(body, &file); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if !file.OK || file.Result.FilePath == "" {
		return nil, fmt.Errorf("getFile returned ok=%v path=%q", file.OK, file.Result.FilePath)
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", t.baseURL, t.token, file.Result.FilePath)
	fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	fileResp, err := t.client.Do(fileReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer fileResp.Body.Close()

	if fileResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file download error %d", fileResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(fileResp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (t *TelegramChannel) sendChatAction(ctx context.Context, chatID, action string) {
	payload, err := json.Marshal(telegramActionRequest{ChatID: chatID, Action: action})
	if err != nil {
		return
	}
	url := fmt.Sprintf("%s/bot%s/sendChatAction", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

func (t *TelegramChannel) sendMessage(ctx context.Context, chatID, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	payload, err := json.Marshal(telegramSendRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage error %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

var _ domain.Channel = (*TelegramChannel)(nil)
