// Package testutil provides shared fixtures for AgentMint HTTP tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"

	"github.com/BTreeMap/AgentMint/internal/api"
	"github.com/BTreeMap/AgentMint/internal/flow"
	"github.com/BTreeMap/AgentMint/internal/messaging"
	"github.com/BTreeMap/AgentMint/internal/models"
	"github.com/BTreeMap/AgentMint/internal/store"
	"github.com/BTreeMap/AgentMint/internal/telegram"
)

// TestBotToken is the bot token NewTestServer guards its webhook with.
const TestBotToken = "42:test-token"

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// Stub upstream clients returning fixed values.
type (
	StubGenerator struct{ URL string }
	StubPinner    struct{ URL string }
	StubMinter    struct{ TxHash string }
)

func (g StubGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return g.URL, nil
}

func (p StubPinner) PinImage(ctx context.Context, imageURL string) (string, error) {
	return p.URL, nil
}

func (m StubMinter) MintNFT(ctx context.Context, wallet, metadataURL string) (string, error) {
	return m.TxHash, nil
}

// TestServer bundles a Telegram-backed api.Server with its mock and store.
type TestServer struct {
	*api.Server
	Telegram *telegram.MockClient
	Store    *store.InMemoryStore
}

// NewTestServer creates an API server with in-memory dependencies and stub
// upstream clients.
func NewTestServer() *TestServer {
	client := telegram.NewMockClient()
	svc := messaging.NewTelegramService(client, "")
	st := store.NewInMemoryStore()
	agent := flow.NewAgentFlow(svc,
		StubGenerator{URL: "https://fal.media/files/test.png"},
		StubPinner{URL: "https://gateway.pinata.cloud/ipfs/QmTest"},
		StubMinter{TxHash: "0xtest"},
		flow.WithMintRecorder(st))
	srv := api.NewServer(svc, svc.WebhookHandler, st, agent, api.WithBotToken(TestBotToken))
	return &TestServer{Server: srv, Telegram: client, Store: st}
}

// TelegramUpdate renders a Telegram text update as webhook JSON.
func TelegramUpdate(updateID int, chatID int64, text string) string {
	entities := ""
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		entities = fmt.Sprintf(`,"entities":[{"type":"bot_command","offset":0,"length":%d}]`, len(cmd))
	}
	return fmt.Sprintf(`{"update_id":%d,"message":{"message_id":%d,"date":1700000000,"chat":{"id":%d,"type":"private"},"text":%q%s}}`,
		updateID, updateID, chatID, text, entities)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t TB, rr *httptest.ResponseRecorder, expectedStatus models.APIStatus) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
		return nil
	}
	status, ok := response["status"].(string)
	if !ok {
		t.Errorf("response missing or invalid 'status' field")
		return response
	}
	if status != string(expectedStatus) {
		t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
	}
	return response
}

// SeedTestData adds sample receipts and mint records to the store.
func SeedTestData(t TB, st store.Store) {
	t.Helper()
	for _, r := range []models.Receipt{
		{To: "1001", Status: models.MessageStatusSent, Time: 1},
		{To: "1002", Status: models.MessageStatusFailed, Time: 2},
	} {
		if err := st.AddReceipt(r); err != nil {
			t.Fatalf("failed to add test receipt: %v", err)
		}
	}
	mint := models.MintRecord{
		ID: "mint-1", ParticipantID: "1001", WalletAddress: "0x52908400098527886E0F7030069857D2E4169EE7",
		MetadataURL: "https://gateway.pinata.cloud/ipfs/QmTest", TxHash: "0xtest", Status: models.MintStatusConfirmed,
	}
	if err := st.AddMintRecord(mint); err != nil {
		t.Fatalf("failed to add test mint record: %v", err)
	}
}
