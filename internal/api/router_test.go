package api_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/persistorai/explorer/internal/api"
	"github.com/persistorai/explorer/internal/models"
)

func testRouter(t *testing.T, token string, queue *mockQueue) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return api.NewRouter(ctx, &api.RouterDeps{
		Log: testLogger(),
		Summaries: &mockSummaries{summaryFn: func(_ context.Context, name string) (*models.ProductSummary, error) {
			return &models.ProductSummary{Name: name}, nil
		}},
		Catalog:     &mockCatalog{names: []string{"ls8_nbar_scene"}},
		Refreshes:   queue,
		Location:    time.UTC,
		AdminToken:  token,
		CORSOrigins: []string{"http://localhost:3000"},
		CacheMaxAge: time.Minute,
		Version:     "test",
	})
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	r := testRouter(t, "0123456789abcdef", &mockQueue{accept: true})

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"health", http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"product", http.MethodGet, "/api/v1/products/ls8_nbar_scene", "", http.StatusOK},
		{"refresh without token", http.MethodPost, "/api/v1/products/ls8_nbar_scene/refresh", "", http.StatusUnauthorized},
		{"refresh with token", http.MethodPost, "/api/v1/products/ls8_nbar_scene/refresh", "Bearer 0123456789abcdef", http.StatusAccepted},
		{"unknown route", http.MethodGet, "/api/v1/nodes", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.auth != "" {
				headers = []string{"Authorization", tt.auth}
			}

			w := doRequest(r, tt.method, tt.path, "", headers...)
			if w.Code != tt.want {
				t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, w.Code)
			}

			if w.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}
}

func TestRouter_ReadsAreCacheable(t *testing.T) {
	t.Parallel()

	r := testRouter(t, "", &mockQueue{accept: true})

	w := doRequest(r, http.MethodGet, "/api/v1/products/ls8_nbar_scene", "")
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=60" {
		t.Errorf("Cache-Control = %q, want public, max-age=60", got)
	}
}

func TestRouter_RefreshDisabledWithoutToken(t *testing.T) {
	t.Parallel()

	queue := &mockQueue{accept: true}
	r := testRouter(t, "", queue)

	w := doRequest(r, http.MethodPost, "/api/v1/products/ls8_nbar_scene/refresh", "", "Authorization", "Bearer anything")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	if len(queue.jobs) != 0 {
		t.Error("refresh was queued while disabled")
	}
}

func TestRouter_RefreshLimitedPerProduct(t *testing.T) {
	t.Parallel()

	r := testRouter(t, "0123456789abcdef", &mockQueue{accept: true})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = doRequest(r, http.MethodPost, "/api/v1/products/ls8_nbar_scene/refresh", "",
			"Authorization", "Bearer 0123456789abcdef").Code
	}

	if codes[0] != http.StatusAccepted || codes[2] != http.StatusTooManyRequests {
		t.Errorf("refresh codes = %v, want the third limited", codes)
	}
}
