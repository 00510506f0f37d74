package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tailspot/internal/config"
)

const userAgent = "tailspot/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyImportCompleted(ctx context.Context, format string, imported, skipped, failed int) error
	NotifyScrapeBatchFinished(ctx context.Context, succeeded, failed, photos int, duration time.Duration) error
	NotifyJobBlocked(ctx context.Context, registration, source, reason string) error
	NotifyReviewReady(ctx context.Context, pending int) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		imports:  cfg.Notifications.Imports,
		scraping: cfg.Notifications.Scraping,
		review:   cfg.Notifications.Review,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client

	imports  bool
	scraping bool
	review   bool
	errors   bool
}

func (n *ntfyService) NotifyImportCompleted(ctx context.Context, format string, imported, skipped, failed int) error {
	if !n.imports {
		return nil
	}
	format = strings.TrimSpace(format)
	if format == "" {
		format = "unknown"
	}

	var title, message string
	if failed == 0 {
		title = "Tailspot - Import Complete"
		message = fmt.Sprintf("✈️ Imported %d flights from %s (%d duplicates skipped)", imported, format, skipped)
	} else {
		title = "Tailspot - Import Complete (with errors)"
		message = fmt.Sprintf("✈️ Imported %d flights from %s (%d duplicates skipped, %d rows rejected)", imported, format, skipped, failed)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"tailspot", "import", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyScrapeBatchFinished(ctx context.Context, succeeded, failed, photos int, duration time.Duration) error {
	if !n.scraping {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Tailspot - Scrape Complete"
		message = fmt.Sprintf("📷 Scrape batch complete: %d jobs, %d photos found in %s", succeeded, photos, durationText)
	} else {
		title = "Tailspot - Scrape Complete (with errors)"
		message = fmt.Sprintf("📷 Scrape batch complete: %d succeeded, %d failed, %d photos found in %s", succeeded, failed, photos, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"tailspot", "scrape", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobBlocked(ctx context.Context, registration, source, reason string) error {
	if !n.scraping {
		return nil
	}
	registration = strings.TrimSpace(registration)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "request refused"
	}
	data := payload{
		title:    "Tailspot - Source Blocked",
		message:  fmt.Sprintf("🚫 %s refused %s: %s", source, registration, reason),
		tags:     []string{"tailspot", "scrape", "blocked"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewReady(ctx context.Context, pending int) error {
	if !n.review || pending <= 0 {
		return nil
	}
	data := payload{
		title:   "Tailspot - Review Ready",
		message: fmt.Sprintf("📷 %d candidate photos waiting for review", pending),
		tags:    []string{"tailspot", "review", "pending"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Tailspot - Error",
		message:  builder.String(),
		tags:     []string{"tailspot", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Tailspot - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"tailspot", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyImportCompleted(context.Context, string, int, int, int) error { return nil }
func (noopService) NotifyScrapeBatchFinished(context.Context, int, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyJobBlocked(context.Context, string, string, string) error { return nil }
func (noopService) NotifyReviewReady(context.Context, int) error                   { return nil }
func (noopService) NotifyError(context.Context, error, string) error               { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
