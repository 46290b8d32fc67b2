package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/AgentMint/internal/flow"
	"github.com/BTreeMap/AgentMint/internal/models"
	"github.com/BTreeMap/AgentMint/internal/store"
)

func TestNewTestServer_ServesAuditRoutes(t *testing.T) {
	srv := NewTestServer()
	SeedTestData(t, srv.Store)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/mints", nil))
	AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET /mints")
	resp := AssertJSONResponse(t, rr, models.APIStatusOK)
	if result, ok := resp["result"].([]interface{}); !ok || len(result) != 1 {
		t.Errorf("expected one mint record, got %v", resp["result"])
	}
}

func TestNewTestServer_WebhookStartsWizard(t *testing.T) {
	srv := NewTestServer()
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		_ = srv.Stop(context.Background())
		cancel()
	}()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/"+TestBotToken, strings.NewReader(TelegramUpdate(1, 1001, "/start")))
	srv.Handler().ServeHTTP(rr, req)
	AssertHTTPStatus(t, http.StatusOK, rr.Code, "POST webhook")

	for i := 0; i < 400 && len(srv.Telegram.Messages()) == 0; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	msgs := srv.Telegram.Messages()
	if len(msgs) != 1 || msgs[0].ChatID != 1001 || msgs[0].Body != flow.MsgGreeting {
		t.Errorf("expected greeting, got %+v", msgs)
	}
}

func TestTelegramUpdate(t *testing.T) {
	got := TelegramUpdate(7, 1001, "/start now")
	if !strings.Contains(got, `"length":6`) || !strings.Contains(got, `"text":"/start now"`) {
		t.Errorf("unexpected update: %s", got)
	}
	if strings.Contains(TelegramUpdate(8, 1001, "pen"), "entities") {
		t.Error("plain text should carry no entities")
	}
}

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{"matching status codes", 200, 200, false},
		{"different status codes", 200, 404, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertHTTPStatus(mockT, tt.expected, tt.actual, "ctx")
			if mockT.failed != tt.shouldFail {
				t.Errorf("expected failed=%v, got %v (%s)", tt.shouldFail, mockT.failed, mockT.errorMsg)
			}
		})
	}
}

func TestAssertJSONResponse(t *testing.T) {
	tests := []struct {
		name       string
		jsonBody   string
		shouldFail bool
	}{
		{"matching status", `{"status":"ok","result":1}`, false},
		{"different status", `{"status":"error"}`, true},
		{"invalid JSON", `{"status":}`, true},
		{"missing status field", `{"result":1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			rr := httptest.NewRecorder()
			rr.Body.WriteString(tt.jsonBody)
			AssertJSONResponse(mockT, rr, models.APIStatusOK)
			if mockT.failed != tt.shouldFail {
				t.Errorf("expected failed=%v, got %v (%s)", tt.shouldFail, mockT.failed, mockT.errorMsg)
			}
		})
	}
}

func TestSeedTestData(t *testing.T) {
	st := store.NewInMemoryStore()
	SeedTestData(t, st)

	receipts, _ := st.GetReceipts()
	if len(receipts) != 2 {
		t.Errorf("expected 2 receipts, got %d", len(receipts))
	}
	mints, _ := st.GetMintRecords()
	if len(mints) != 1 {
		t.Errorf("expected 1 mint record, got %d", len(mints))
	}
}

// mockTestingT records failures without stopping the enclosing test.
type mockTestingT struct {
	failed   bool
	errorMsg string
}

func (m *mockTestingT) Helper() {}

func (m *mockTestingT) Errorf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func (m *mockTestingT) Fatalf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}
