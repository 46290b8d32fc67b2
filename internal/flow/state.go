// Package flow implements the agent wizard: a per-participant state machine
// that collects answers, generates an image, pins it and mints an NFT.
package flow

import (
	"context"

	"github.com/BTreeMap/AgentMint/internal/models"
)

// MessagingService is the reply side of the messaging transport.
type MessagingService interface {
	SendMessage(ctx context.Context, to string, body string) error
	SendMarkdown(ctx context.Context, to string, body string) error
}

// MintRecorder persists the outcome of every mint attempt.
type MintRecorder interface {
	AddMintRecord(r models.MintRecord) error
}

// AddressValidator reports whether a string is a syntactically valid wallet address.
type AddressValidator func(address string) bool
