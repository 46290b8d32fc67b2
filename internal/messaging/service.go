package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/BTreeMap/AgentMint/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for receipt and response channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned by send operations after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// Service defines a pluggable message delivery abstraction.
// It supports sending messages, and provides channels for receipt and response events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Returns the canonicalized recipient and an error if validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a plain text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendMarkdown sends a message the transport should render as Markdown.
	// Transports without rich text deliver the body unchanged.
	SendMarkdown(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., webhook registration).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of receipt events for sent messages.
	Receipts() <-chan models.Receipt

	// Responses returns a channel of incoming participant messages.
	Responses() <-chan models.Response
}
