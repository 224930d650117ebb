package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Notifier pushes operator alerts to a Telegram chat via the Bot API.
type Notifier struct {
	baseURL  string
	botToken string
	chatID   int64
	client   *http.Client
}

func NewNotifier(botToken string, chatID int64) *Notifier {
	return &Notifier{
		baseURL:  defaultBaseURL,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a Markdown message to the configured chat.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == 0 {
		return fmt.Errorf("notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(n.chatID, 10))
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call bot API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bot API error: %s", resp.Status)
	}

	return nil
}

// NotifyPositiveReply alerts the operator that a client answered positively
// and the lead needs a human takeover.
func (n *Notifier) NotifyPositiveReply(ctx context.Context, leadSummary, replyText, senderUsername, channelTitle string) error {
	username := "unknown"
	if senderUsername != "" {
		username = "@" + senderUsername
	}
	if channelTitle == "" {
		channelTitle = "unknown channel"
	}

	text := fmt.Sprintf(
		"*Positive reply!*\n\nChannel: %s\nFrom: %s\n\nOrder: %s\n\nReply:\n%s",
		channelTitle, username, leadSummary, replyText,
	)

	return n.Send(ctx, text)
}

// NotifyPeerFlood alerts the operator that the account is hard-throttled.
func (n *Notifier) NotifyPeerFlood(ctx context.Context) error {
	return n.Send(ctx, "*PeerFlood* - outreach paused for 24 hours.\nCheck account safety.")
}

// SendDailySummary posts lead counts per status.
func (n *Notifier) SendDailySummary(ctx context.Context, stats map[string]int) error {
	statuses := make([]string, 0, len(stats))
	for status := range stats {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	lines := []string{"*Daily Summary*", ""}
	for _, status := range statuses {
		lines = append(lines, fmt.Sprintf("  %s: %d", status, stats[status]))
	}

	return n.Send(ctx, strings.Join(lines, "\n"))
}
