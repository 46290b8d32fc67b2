package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/BTreeMap/AgentMint/internal/models"
	"github.com/BTreeMap/AgentMint/internal/twiliowhatsapp"
)

func TestTwilioService_ImplementsService(t *testing.T) {
	var _ Service = (*TwilioService)(nil)
}

func TestTwilioService_ValidateRecipient(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"whatsapp:+15551234567", "15551234567", false},
		{"+1 (555) 123-4567", "15551234567", false},
		{"", "", true},
		{"abc", "", true},
		{"12345", "", true},
	}
	for _, tt := range tests {
		got, err := svc.ValidateAndCanonicalizeRecipient(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTwilioService_SendMarkdownSendsPlainText(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMarkdown(context.Background(), "+15551234567", "[tx](https://explorer)"); err != nil {
		t.Fatalf("SendMarkdown returned error: %v", err)
	}
	msgs := mock.Messages()
	if len(msgs) != 1 || msgs[0].To != "15551234567" || msgs[0].Body != "[tx](https://explorer)" {
		t.Errorf("unexpected messages: %+v", msgs)
	}
	if receipt := <-svc.Receipts(); receipt.Status != models.MessageStatusSent {
		t.Errorf("expected sent receipt, got %+v", receipt)
	}
}

func TestTwilioService_WebhookHandler(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"/start"}, "MessageSid": {"SM123"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	svc.TwilioWebhookHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	select {
	case resp := <-svc.Responses():
		if resp.From != "15551234567" || resp.MessageID != "twilio:SM123" || resp.Command != StartCommand {
			t.Errorf("unexpected response: %+v", resp)
		}
	default:
		t.Fatal("expected response to be emitted")
	}
}

func TestTwilioService_WebhookHandler_MissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{"From": {"whatsapp:+15551234567"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	svc.TwilioWebhookHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}
