package merchant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
)

// nopLogger - логгер-заглушка для тестов
type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func (nopLogger) DebugWithContext(ctx context.Context, msg string, args ...interface{}) {}
func (nopLogger) InfoWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) WarnWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) ErrorWithContext(ctx context.Context, msg string, args ...interface{}) {}

func (l nopLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort { return l }
func (l nopLogger) WithField(key string, value interface{}) interfaces.LoggerPort  { return l }
func (nopLogger) Sync() error                                                      { return nil }

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := NewClient(Config{
		MerchantID: "12345",
		BaseURL:    baseURL,
		Token:      "test-token",
		PageSize:   2,
	}, nopLogger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Token: "t"}, nopLogger{})
	if !errors.Is(err, utils.ErrMerchantID) {
		t.Fatalf("expected ErrMerchantID, got %v", err)
	}

	_, err = NewClient(Config{MerchantID: "123"}, nopLogger{})
	if !errors.Is(err, utils.ErrMerchantCredential) {
		t.Fatalf("expected ErrMerchantCredential, got %v", err)
	}
}

func TestInsert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/content/v2.1/12345/products" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header: %s", got)
		}

		var listing models.Listing
		if err := json.NewDecoder(r.Body).Decode(&listing); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if listing.OfferID != "PRD-001-US" {
			t.Errorf("unexpected offer id: %s", listing.OfferID)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "online:en:US:PRD-001-US"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	id, err := client.Insert(context.Background(), &models.Listing{OfferID: "PRD-001-US"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "online:en:US:PRD-001-US" {
		t.Errorf("unexpected id: %s", id)
	}
}

func TestInsertServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": 400, "message": "invalid price"},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Insert(context.Background(), &models.Listing{OfferID: "PRD-001-US"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBatchInsert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/content/v2.1/products/batch" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var request struct {
			Entries []struct {
				BatchID    int64           `json:"batchId"`
				MerchantID string          `json:"merchantId"`
				Method     string          `json:"method"`
				Product    *models.Listing `json:"product"`
			} `json:"entries"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if len(request.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(request.Entries))
		}
		if request.Entries[0].Method != "insert" || request.Entries[0].MerchantID != "12345" {
			t.Errorf("unexpected entry meta: %+v", request.Entries[0])
		}

		// Вторая позиция отклоняется
		json.NewEncoder(w).Encode(map[string]interface{}{
			"entries": []map[string]interface{}{
				{"batchId": 0, "product": request.Entries[0].Product},
				{"batchId": 1, "errors": map[string]interface{}{"code": 400, "message": "missing title"}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	results, err := client.BatchInsert(context.Background(), []models.BatchEntry{
		{BatchID: 0, Listing: &models.Listing{OfferID: "A-US"}},
		{BatchID: 1, Listing: &models.Listing{OfferID: "B-US"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].OK || results[0].OfferID != "A-US" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].OK || results[1].Error != "missing title" || results[1].OfferID != "B-US" {
		t.Errorf("unexpected second result: %+v", results[1])
	}
}

func TestDeleteIdempotent(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   interface{}
	}{
		{"success", http.StatusNoContent, nil},
		{"not found status", http.StatusNotFound, nil},
		{
			"not found message",
			http.StatusBadRequest,
			map[string]interface{}{"error": map[string]interface{}{"code": 400, "message": "Item not found in account"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete {
					t.Errorf("expected DELETE, got %s", r.Method)
				}
				w.WriteHeader(tc.status)
				if tc.body != nil {
					json.NewEncoder(w).Encode(tc.body)
				}
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			if err := client.Delete(context.Background(), "PRD-001-US", "US"); err != nil {
				t.Fatalf("delete must be idempotent, got %v", err)
			}
		})
	}
}

func TestDeleteRealError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": 403, "message": "insufficient permissions"},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if err := client.Delete(context.Background(), "PRD-001-US", "US"); err == nil {
		t.Fatal("expected error for non-idempotent failure")
	}
}

func TestListFollowsPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("pageToken")
		switch token {
		case "":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"resources": []map[string]string{
					{"offerId": "A-US"},
					{"offerId": "B-US"},
				},
				"nextPageToken": "page-2",
			})
		case "page-2":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"resources": []map[string]string{
					{"offerId": "C-US"},
				},
			})
		default:
			t.Errorf("unexpected page token: %s", token)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	listings, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings across pages, got %d", len(listings))
	}
	if listings[2].OfferID != "C-US" {
		t.Errorf("unexpected last listing: %+v", listings[2])
	}
}
