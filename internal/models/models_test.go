package models

import "testing"

func TestReceiptJSONTags(t *testing.T) {
	r := Receipt{To: "123", Status: "sent", Time: 123456}
	if r.To != "123" || r.Status != "sent" || r.Time != 123456 {
		t.Error("Receipt struct fields not set correctly")
	}
}

func TestResponseIsCommand(t *testing.T) {
	r := Response{From: "42", Body: "/start", Command: "start"}
	if !r.IsCommand("start") {
		t.Error("expected start command to be recognised")
	}
	if (Response{Body: "start"}).IsCommand("start") {
		t.Error("plain text must not be treated as a command")
	}
}

func TestMintRecordValidate(t *testing.T) {
	tests := []struct {
		name string
		rec  MintRecord
		want error
	}{
		{"valid", MintRecord{ParticipantID: "1", WalletAddress: "0xabc", MetadataURL: "https://x"}, nil},
		{"no participant", MintRecord{WalletAddress: "0xabc", MetadataURL: "https://x"}, ErrEmptyParticipantID},
		{"no wallet", MintRecord{ParticipantID: "1", MetadataURL: "https://x"}, ErrEmptyWalletAddress},
		{"no metadata", MintRecord{ParticipantID: "1", WalletAddress: "0xabc"}, ErrEmptyMetadataURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rec.Validate(); err != tt.want {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSessionReset(t *testing.T) {
	s := NewSession("7")
	s.Answers = []string{"a", "b", "c"}
	s.ImageURL = "https://img"
	s.MetadataURL = "https://meta"
	s.WalletAddress = "0xabc"
	s.GenerationCount = 3
	s.Phase = PhaseAwaitingWalletAddress

	s.Reset(CapScopeRound)
	if len(s.Answers) != 0 || s.ImageURL != "" || s.MetadataURL != "" || s.WalletAddress != "" {
		t.Errorf("session fields not cleared: %+v", s)
	}
	if s.GenerationCount != 0 {
		t.Errorf("expected generation count 0 after round reset, got %d", s.GenerationCount)
	}
	if s.Phase != PhaseCollecting {
		t.Errorf("expected phase %s, got %s", PhaseCollecting, s.Phase)
	}

	s.GenerationCount = 4
	s.Reset(CapScopeLifetime)
	if s.GenerationCount != 4 {
		t.Errorf("lifetime reset must keep generation count, got %d", s.GenerationCount)
	}
}

func TestIsValidCapScope(t *testing.T) {
	if !IsValidCapScope(CapScopeRound) || !IsValidCapScope(CapScopeLifetime) {
		t.Error("expected built-in cap scopes to be valid")
	}
	if IsValidCapScope("weekly") {
		t.Error("unexpected valid cap scope")
	}
}
