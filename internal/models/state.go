// Package models defines session state structures for the agent wizard.
package models

import "time"

// Session is the per-participant conversational state.
type Session struct {
	ParticipantID   string    `json:"participant_id"`
	Phase           Phase     `json:"phase"`
	Answers         []string  `json:"answers"`
	GenerationCount int       `json:"generation_count"`
	ImageURL        string    `json:"image_url,omitempty"`
	MetadataURL     string    `json:"metadata_url,omitempty"`
	WalletAddress   string    `json:"wallet_address,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewSession returns a session with every field at its initial value.
func NewSession(participantID string) *Session {
	return &Session{
		ParticipantID: participantID,
		Phase:         PhaseCollecting,
		Answers:       []string{},
		UpdatedAt:     time.Now(),
	}
}

// Reset returns the session to its initial values. The generation count is
// only cleared when scope is CapScopeRound.
func (s *Session) Reset(scope CapScope) {
	s.Phase = PhaseCollecting
	s.Answers = []string{}
	s.ImageURL = ""
	s.MetadataURL = ""
	s.WalletAddress = ""
	if scope != CapScopeLifetime {
		s.GenerationCount = 0
	}
	s.UpdatedAt = time.Now()
}

// AnswersComplete reports whether all required answers have been collected.
func (s *Session) AnswersComplete() bool {
	return len(s.Answers) >= RequiredAnswers
}
