package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/AgentMint/internal/imagegen"
	"github.com/BTreeMap/AgentMint/internal/minting"
	"github.com/BTreeMap/AgentMint/internal/models"
	"github.com/BTreeMap/AgentMint/internal/pinning"
	"github.com/google/uuid"
)

const (
	replyYes = "yes"
	replyNo  = "no"
)

// Opts holds configuration options for the agent flow.
type Opts struct {
	GenerationCap   int
	CapScope        models.CapScope
	ExplorerURL     string
	ValidateAddress AddressValidator
	MintRecorder    MintRecorder
	Sessions        *SessionStore
}

// Option defines a configuration option for the agent flow.
type Option func(*Opts)

// WithGenerationCap sets how many images a session may generate.
func WithGenerationCap(n int) Option {
	return func(o *Opts) { o.GenerationCap = n }
}

// WithCapScope sets whether a restart clears the generation count.
func WithCapScope(scope models.CapScope) Option {
	return func(o *Opts) { o.CapScope = scope }
}

// WithExplorerURL sets the block explorer base used in mint replies.
func WithExplorerURL(url string) Option {
	return func(o *Opts) { o.ExplorerURL = url }
}

// WithAddressValidator replaces the wallet address format check.
func WithAddressValidator(v AddressValidator) Option {
	return func(o *Opts) { o.ValidateAddress = v }
}

// WithMintRecorder records every mint attempt.
func WithMintRecorder(r MintRecorder) Option {
	return func(o *Opts) { o.MintRecorder = r }
}

// WithSessionStore supplies the session store.
func WithSessionStore(s *SessionStore) Option {
	return func(o *Opts) { o.Sessions = s }
}

// AgentFlow is the conversation state machine of the agent wizard.
type AgentFlow struct {
	sessions        *SessionStore
	msgService      MessagingService
	images          imagegen.Generator
	pinner          pinning.Pinner
	minter          minting.Minter
	validateAddress AddressValidator
	mints           MintRecorder
	generationCap   int
	capScope        models.CapScope
	explorerURL     string
}

// NewAgentFlow wires the flow to its messaging transport and the three upstream clients.
func NewAgentFlow(msgService MessagingService, images imagegen.Generator, pinner pinning.Pinner, minter minting.Minter, opts ...Option) *AgentFlow {
	cfg := Opts{
		GenerationCap:   models.DefaultGenerationCap,
		CapScope:        models.CapScopeRound,
		ExplorerURL:     minting.DefaultExplorerURL,
		ValidateAddress: minting.IsValidAddress,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.GenerationCap <= 0 {
		cfg.GenerationCap = models.DefaultGenerationCap
	}
	if !models.IsValidCapScope(cfg.CapScope) {
		slog.Warn("AgentFlow unknown cap scope, using round", "cap_scope", cfg.CapScope)
		cfg.CapScope = models.CapScopeRound
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionStore(DefaultMaxSessions, DefaultSessionTTL)
	}
	slog.Debug("AgentFlow.NewAgentFlow: creating flow", "generation_cap", cfg.GenerationCap, "cap_scope", cfg.CapScope, "has_mint_recorder", cfg.MintRecorder != nil)

	return &AgentFlow{
		sessions:        cfg.Sessions,
		msgService:      msgService,
		images:          images,
		pinner:          pinner,
		minter:          minter,
		validateAddress: cfg.ValidateAddress,
		mints:           cfg.MintRecorder,
		generationCap:   cfg.GenerationCap,
		capScope:        cfg.CapScope,
		explorerURL:     cfg.ExplorerURL,
	}
}

// Sessions exposes the flow's session store.
func (f *AgentFlow) Sessions() *SessionStore {
	return f.sessions
}

// replier sends replies to one participant and keeps the first send error.
type replier struct {
	ctx   context.Context
	msg   MessagingService
	to    string
	err   error
	count int
}

func (r *replier) send(body string) {
	r.deliver(body, false)
}

func (r *replier) sendMarkdown(body string) {
	r.deliver(body, true)
}

func (r *replier) deliver(body string, markdown bool) {
	var err error
	if markdown {
		err = r.msg.SendMarkdown(r.ctx, r.to, body)
	} else {
		err = r.msg.SendMessage(r.ctx, r.to, body)
	}
	r.count++
	if err != nil {
		slog.Error("AgentFlow reply failed", "error", err, "participantID", r.to)
		if r.err == nil {
			r.err = fmt.Errorf("failed to send reply: %w", err)
		}
	}
}

// Start resets the participant's session and greets them.
func (f *AgentFlow) Start(ctx context.Context, participantID string) error {
	slog.Info("AgentFlow Start", "participantID", participantID)
	return f.sessions.WithSession(participantID, func(s *models.Session) error {
		s.Reset(f.capScope)
		r := &replier{ctx: ctx, msg: f.msgService, to: participantID}
		r.send(MsgGreeting)
		return r.err
	})
}

// HandleMessage routes one inbound text message. Branches are evaluated in a
// fixed order: generation cap, answer collection, generation retry, "yes"
// with an image, "no", wallet address with metadata, and finally the yes/no hint.
// Upstream failures end in a reply; only reply delivery errors are returned.
func (f *AgentFlow) HandleMessage(ctx context.Context, participantID, text string) error {
	return f.sessions.WithSession(participantID, func(s *models.Session) error {
		r := &replier{ctx: ctx, msg: f.msgService, to: participantID}
		from := s.Phase
		f.route(ctx, r, s, text)
		s.UpdatedAt = time.Now()
		slog.Debug("AgentFlow HandleMessage done", "participantID", participantID, "from_phase", from, "to_phase", s.Phase, "replies", r.count)
		return r.err
	})
}

func (f *AgentFlow) route(ctx context.Context, r *replier, s *models.Session, text string) {
	reply := strings.ToLower(strings.TrimSpace(text))

	switch {
	case s.GenerationCount >= f.generationCap:
		slog.Info("AgentFlow generation cap reached", "participantID", s.ParticipantID, "count", s.GenerationCount)
		r.send(MsgCapReached)

	case !s.AnswersComplete():
		f.collectAnswer(ctx, r, s, text)

	case s.Phase == models.PhaseGenerationFailed && reply == replyYes:
		f.generate(ctx, r, s)

	case reply == replyYes && s.ImageURL != "":
		f.pin(ctx, r, s)

	case reply == replyNo:
		f.restart(r, s)

	case s.MetadataURL != "" && f.validateAddress(strings.TrimSpace(text)):
		f.mint(ctx, r, s, strings.TrimSpace(text))

	default:
		r.send(MsgReplyYesNo)
	}
}

func (f *AgentFlow) collectAnswer(ctx context.Context, r *replier, s *models.Session, text string) {
	s.Answers = append(s.Answers, text)
	s.Phase = models.PhaseCollecting
	slog.Debug("AgentFlow answer collected", "participantID", s.ParticipantID, "answers", len(s.Answers))

	switch len(s.Answers) {
	case 1:
		r.send(MsgAskHat)
	case 2:
		r.send(MsgAskOutfit)
	default:
		r.send(MsgAggregating)
		f.generate(ctx, r, s)
	}
}

func (f *AgentFlow) generate(ctx context.Context, r *replier, s *models.Session) {
	prompt := BuildPrompt(s.Answers[0], s.Answers[1], s.Answers[2])
	slog.Info("AgentFlow generating image", "participantID", s.ParticipantID, "generation", s.GenerationCount+1)

	url, err := f.images.GenerateImage(ctx, prompt)
	if err != nil {
		slog.Error("AgentFlow image generation failed", "error", err, "participantID", s.ParticipantID)
		s.Phase = models.PhaseGenerationFailed
		r.send(MsgGenerationFailed)
		r.send(MsgRetryGeneration)
		return
	}

	s.ImageURL = url
	s.GenerationCount++
	s.Phase = models.PhaseAwaitingMintConfirmation
	r.send(fmt.Sprintf(MsgImageReadyFormat, url))
	r.send(MsgAskMint)
}

func (f *AgentFlow) pin(ctx context.Context, r *replier, s *models.Session) {
	r.send(MsgUploading)

	metadataURL, err := f.pinner.PinImage(ctx, s.ImageURL)
	if err != nil {
		slog.Error("AgentFlow pinning failed", "error", err, "participantID", s.ParticipantID)
		r.send(MsgPinFailed)
		return
	}

	s.MetadataURL = metadataURL
	s.Phase = models.PhaseAwaitingWalletAddress
	slog.Info("AgentFlow image pinned", "participantID", s.ParticipantID, "metadata_url", metadataURL)
	r.send(MsgAskWallet)
}

func (f *AgentFlow) restart(r *replier, s *models.Session) {
	slog.Info("AgentFlow restarting session", "participantID", s.ParticipantID, "cap_scope", f.capScope)
	r.send(MsgRestarting)
	s.Reset(f.capScope)
	r.send(MsgWelcomeBack)
}

func (f *AgentFlow) mint(ctx context.Context, r *replier, s *models.Session, address string) {
	s.WalletAddress = address
	r.send(MsgMinting)

	txHash, err := f.minter.MintNFT(ctx, s.WalletAddress, s.MetadataURL)
	f.recordMint(s, txHash, err)
	if err != nil {
		slog.Error("AgentFlow minting failed", "error", err, "participantID", s.ParticipantID, "wallet", s.WalletAddress)
		r.send(MsgMintFailed)
		return
	}

	s.Phase = models.PhaseMinted
	slog.Info("AgentFlow NFT minted", "participantID", s.ParticipantID, "tx_hash", txHash)
	r.sendMarkdown(fmt.Sprintf(MsgMintedFormat, txHash, minting.TxURL(f.explorerURL, txHash), s.MetadataURL))
}

func (f *AgentFlow) recordMint(s *models.Session, txHash string, mintErr error) {
	if f.mints == nil {
		return
	}
	rec := models.MintRecord{
		ID:            uuid.NewString(),
		ParticipantID: s.ParticipantID,
		WalletAddress: s.WalletAddress,
		MetadataURL:   s.MetadataURL,
		TxHash:        txHash,
		Status:        models.MintStatusConfirmed,
		CreatedAt:     time.Now(),
	}
	if mintErr != nil {
		rec.Status = models.MintStatusFailed
		rec.Error = mintErr.Error()
	}
	if err := f.mints.AddMintRecord(rec); err != nil {
		slog.Warn("AgentFlow failed to record mint", "error", err, "participantID", s.ParticipantID)
	}
}
