// Package notify sends run summaries over the configured channels. Delivery
// failures are logged and never propagate into the run result.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/types"
)

// EmailSender delivers one built email message. The default implementation
// only logs the message; real SMTP delivery is a deployment concern.
type EmailSender interface {
	Send(ctx context.Context, from string, to []string, subject, body string) error
}

// Notifier fans a run summary out to the enabled channels.
type Notifier struct {
	cfg        config.Notifications
	log        *log.Logger
	email      EmailSender
	httpClient *http.Client
}

func New(cfg config.Notifications, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	n := &Notifier{
		cfg:        cfg,
		log:        logger,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	n.email = &logSender{log: logger}
	return n
}

// Notify sends the summary over every enabled channel. Always nil-error;
// channel failures are logged only.
func (n *Notifier) Notify(ctx context.Context, result *types.RunResult) {
	n.log.Printf("NOTIFICATION: %d changes detected", result.ChangesDetected)

	if n.cfg.Email.Enabled {
		if err := n.sendEmail(ctx, result); err != nil {
			n.log.Printf("Failed to send email: %v", err)
		}
	}
	if n.cfg.Chat.Enabled {
		if err := n.sendChat(ctx, result); err != nil {
			n.log.Printf("Failed to send chat notification: %v", err)
		}
	}
}

func (n *Notifier) sendEmail(ctx context.Context, result *types.RunResult) error {
	subject := fmt.Sprintf("MedWatch Alert - %d Changes Detected", result.ChangesDetected)
	body := fmt.Sprintf(`The medwatch pipeline has detected changes in monitored sources.

Summary:
- Sources processed: %d
- Changes detected: %d
- Updates applied: %d
- Timestamp: %s

Please review the changes in the repository or review queue.
`, result.SourcesProcessed, result.ChangesDetected, result.UpdatesApplied,
		result.Timestamp.Format(time.RFC3339))

	return n.email.Send(ctx, n.cfg.Email.From, n.cfg.Email.To, subject, body)
}

// chatMessage is the webhook payload shape. The blocks layout follows the
// Slack block kit convention but any compatible receiver works.
type chatMessage struct {
	Text   string      `json:"text"`
	Blocks []chatBlock `json:"blocks"`
}

type chatBlock struct {
	Type   string     `json:"type"`
	Text   *chatText  `json:"text,omitempty"`
	Fields []chatText `json:"fields,omitempty"`
}

type chatText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (n *Notifier) sendChat(ctx context.Context, result *types.RunResult) error {
	if n.cfg.Chat.WebhookURL == "" {
		return nil
	}

	msg := chatMessage{
		Text: "MedWatch Alert",
		Blocks: []chatBlock{
			{
				Type: "header",
				Text: &chatText{Type: "plain_text", Text: "MedWatch Changes Detected"},
			},
			{
				Type: "section",
				Fields: []chatText{
					{Type: "mrkdwn", Text: fmt.Sprintf("*Sources:*\n%d", result.SourcesProcessed)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Changes:*\n%d", result.ChangesDetected)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Updates:*\n%d", result.UpdatesApplied)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Time:*\n%s", result.Timestamp.Format("2006-01-02 15:04"))},
				},
			},
		},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Chat.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// logSender records the message instead of delivering it.
type logSender struct {
	log *log.Logger
}

func (s *logSender) Send(_ context.Context, _ string, to []string, subject, _ string) error {
	s.log.Printf("Would send email %q to %s", subject, strings.Join(to, ", "))
	return nil
}
