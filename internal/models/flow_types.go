// Package models defines flow type definitions to avoid circular imports.
package models

// Phase represents the stage of the agent wizard a participant is in.
type Phase string

// Phase constants for the agent wizard.
const (
	PhaseCollecting               Phase = "COLLECTING"
	PhaseGenerationFailed         Phase = "GENERATION_FAILED"
	PhaseAwaitingMintConfirmation Phase = "AWAITING_MINT_CONFIRMATION"
	PhaseAwaitingWalletAddress    Phase = "AWAITING_WALLET_ADDRESS"
	PhaseMinted                   Phase = "MINTED" // idle after a confirmed mint
)

// CapScope controls whether a restart clears the generation counter.
type CapScope string

const (
	// CapScopeRound zeroes the generation count on every restart.
	CapScopeRound CapScope = "round"
	// CapScopeLifetime keeps the generation count for the life of the session.
	CapScopeLifetime CapScope = "lifetime"
)

// IsValidCapScope checks if the given cap scope is supported.
func IsValidCapScope(s CapScope) bool {
	switch s {
	case CapScopeRound, CapScopeLifetime:
		return true
	default:
		return false
	}
}

// Number of free-text answers collected before an image is generated.
const RequiredAnswers = 3

// DefaultGenerationCap is the number of generations allowed per session.
const DefaultGenerationCap = 5
