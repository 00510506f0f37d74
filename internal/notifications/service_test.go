package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tailspot/internal/config"
	"tailspot/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyReviewReady(context.Background(), 4); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsMessages(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "import completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyImportCompleted(context.Background(), "fr24", 120, 3, 0)
			},
			expectTitle:   "Tailspot - Import Complete",
			expectMessage: "✈️ Imported 120 flights from fr24 (3 duplicates skipped)",
			expectTags:    "tailspot,import,completed",
		},
		{
			name: "import with rejected rows",
			notify: func(svc notifications.Service) error {
				return svc.NotifyImportCompleted(context.Background(), "airtrail", 10, 0, 2)
			},
			expectTitle:   "Tailspot - Import Complete (with errors)",
			expectMessage: "✈️ Imported 10 flights from airtrail (0 duplicates skipped, 2 rows rejected)",
			expectTags:    "tailspot,import,completed",
		},
		{
			name: "scrape batch finished",
			notify: func(svc notifications.Service) error {
				return svc.NotifyScrapeBatchFinished(context.Background(), 8, 0, 41, 95*time.Second)
			},
			expectTitle:   "Tailspot - Scrape Complete",
			expectMessage: "📷 Scrape batch complete: 8 jobs, 41 photos found in 1m35s",
			expectTags:    "tailspot,scrape,completed",
		},
		{
			name: "job blocked",
			notify: func(svc notifications.Service) error {
				return svc.NotifyJobBlocked(context.Background(), "G-STBA", "airliners", "HTTP 403")
			},
			expectTitle:    "Tailspot - Source Blocked",
			expectMessage:  "🚫 airliners refused G-STBA: HTTP 403",
			expectTags:     "tailspot,scrape,blocked",
			expectPriority: "high",
		},
		{
			name: "review ready",
			notify: func(svc notifications.Service) error {
				return svc.NotifyReviewReady(context.Background(), 6)
			},
			expectTitle:   "Tailspot - Review Ready",
			expectMessage: "📷 6 candidate photos waiting for review",
			expectTags:    "tailspot,review,pending",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("store unavailable"), "scrape")
			},
			expectTitle:    "Tailspot - Error",
			expectMessage:  "❌ Error with scrape: store unavailable",
			expectTags:     "tailspot,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsCategoryToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled category: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Imports = false
	cfg.Notifications.Scraping = false
	cfg.Notifications.Review = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyImportCompleted(ctx, "fr24", 1, 0, 0); err != nil {
		t.Fatalf("disabled import notification errored: %v", err)
	}
	if err := svc.NotifyScrapeBatchFinished(ctx, 1, 0, 1, time.Second); err != nil {
		t.Fatalf("disabled scrape notification errored: %v", err)
	}
	if err := svc.NotifyJobBlocked(ctx, "G-STBA", "airliners", "HTTP 403"); err != nil {
		t.Fatalf("disabled blocked notification errored: %v", err)
	}
	if err := svc.NotifyReviewReady(ctx, 9); err != nil {
		t.Fatalf("disabled review notification errored: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "scrape"); err != nil {
		t.Fatalf("disabled error notification errored: %v", err)
	}
}

func TestNtfyServiceReportsHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
