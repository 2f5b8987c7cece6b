// Package notify delivers leave events to a chat webhook without blocking
// the operation that produced them.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/example/leaveflow/internal/application"
)

// Sender delivers a single event.
type Sender interface {
	Send(ctx context.Context, event application.LeaveEvent) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, event application.LeaveEvent) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, event application.LeaveEvent) error {
	return f(ctx, event)
}

type webhookPayload struct {
	Text string `json:"text"`
}

// WebhookSender posts events as {"text": ...} messages, the format accepted
// by Slack and Google Chat incoming webhooks.
type WebhookSender struct {
	URL        string
	HTTPClient *http.Client
}

// NewWebhookSender constructs a sender with a client bound by timeout.
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{
		URL:        url,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Send implements Sender.
func (s *WebhookSender) Send(ctx context.Context, event application.LeaveEvent) error {
	body, err := json.Marshal(webhookPayload{Text: FormatMessage(event)})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// FormatMessage renders the chat text for an event.
func FormatMessage(event application.LeaveEvent) string {
	var b strings.Builder
	switch event.Kind {
	case application.EventNewRequest:
		fmt.Fprintf(&b, "New leave request from %s", event.EmployeeName)
	case application.EventApproved:
		fmt.Fprintf(&b, "Leave request of %s approved", event.EmployeeName)
	case application.EventRejected:
		fmt.Fprintf(&b, "Leave request of %s rejected", event.EmployeeName)
	default:
		fmt.Fprintf(&b, "Leave request of %s updated", event.EmployeeName)
	}
	fmt.Fprintf(&b, "\n%s leave: %s to %s (%s)", event.LeaveType, event.StartDate, event.EndDate, dayCount(event.Days))
	if reason := strings.TrimSpace(event.Reason); reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", reason)
	}
	if event.Kind == application.EventRejected {
		fmt.Fprintf(&b, "\n%s returned to the balance", dayCount(event.Days))
	}
	fmt.Fprintf(&b, "\nRemaining balance: %s", dayCount(event.RemainingBalance))
	return b.String()
}

func dayCount(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
