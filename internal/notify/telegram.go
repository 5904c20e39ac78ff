package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsharvest/internal/domain"
	"newsharvest/internal/ports"
)

// TelegramNotifier posts ingestion run summaries to a Telegram chat so
// operators hear about partial or total failures without watching logs.
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier registers bot token and chat identifier.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishSummary posts the finished job's status and counters.
func (n *TelegramNotifier) PublishSummary(ctx context.Context, job *domain.IngestionJob) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", formatSummary(job))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func formatSummary(job *domain.IngestionJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ingestion job %s: %s\n", job.ID, job.Status)
	fmt.Fprintf(&b, "attempted %d, new %d, duplicates %d, failed %d\n",
		job.Counters.Attempted,
		job.Counters.Succeeded,
		job.Counters.SkippedDuplicate,
		job.Counters.Failed)

	for i, jobErr := range job.Errors {
		if i == 5 {
			fmt.Fprintf(&b, "... and %d more errors", len(job.Errors)-i)
			break
		}
		fmt.Fprintf(&b, "- %s %s: %s\n", jobErr.Scope, jobErr.Kind, jobErr.Message)
	}

	return b.String()
}
