// Package models defines the core data structures for AgentMint.
//
// It includes inbound responses, outbound receipts, mint audit records and the
// API response envelope, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// MessageStatus represents the delivery status of a message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// MintStatus represents the outcome of a mint attempt.
type MintStatus string

const (
	MintStatusConfirmed MintStatus = "confirmed"
	MintStatusFailed    MintStatus = "failed"
)

// Error variables for better error handling and testability
var (
	ErrEmptyParticipantID = errors.New("participant id cannot be empty")
	ErrEmptyWalletAddress = errors.New("wallet address cannot be empty")
	ErrEmptyMetadataURL   = errors.New("metadata url cannot be empty")
)

// Receipt records an outbound reply sent to a participant.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming message from a participant.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
	// MessageID is the transport's unique identifier for the inbound message
	// (Telegram update_id, Twilio MessageSid). Empty disables deduplication.
	MessageID string `json:"message_id,omitempty"`
	// Command is set when the transport recognised a bot command such as "start".
	Command string `json:"command,omitempty"`
}

// IsCommand reports whether the response carries the given bot command.
func (r Response) IsCommand(name string) bool {
	return r.Command != "" && r.Command == name
}

// MintRecord is an audit entry for a single mint attempt.
type MintRecord struct {
	ID            string     `json:"id"`
	ParticipantID string     `json:"participant_id"`
	WalletAddress string     `json:"wallet_address"`
	MetadataURL   string     `json:"metadata_url"`
	TxHash        string     `json:"tx_hash,omitempty"`
	Status        MintStatus `json:"status"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Validate checks that a MintRecord carries the fields every backend requires.
func (m *MintRecord) Validate() error {
	if m.ParticipantID == "" {
		return ErrEmptyParticipantID
	}
	if m.WalletAddress == "" {
		return ErrEmptyWalletAddress
	}
	if m.MetadataURL == "" {
		return ErrEmptyMetadataURL
	}
	return nil
}

// API Response types for consistent JSON responses

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
