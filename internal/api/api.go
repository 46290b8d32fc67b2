// Package api provides the HTTP server and bootstrap logic for AgentMint.
//
// It receives messaging webhooks, exposes the audit trail as JSON, and wires
// the messaging, flow, store and upstream client modules together.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/AgentMint/internal/flow"
	"github.com/BTreeMap/AgentMint/internal/imagegen"
	"github.com/BTreeMap/AgentMint/internal/lockfile"
	"github.com/BTreeMap/AgentMint/internal/messaging"
	"github.com/BTreeMap/AgentMint/internal/minting"
	"github.com/BTreeMap/AgentMint/internal/pinning"
	"github.com/BTreeMap/AgentMint/internal/store"
	"github.com/BTreeMap/AgentMint/internal/telegram"
	"github.com/BTreeMap/AgentMint/internal/twiliowhatsapp"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server configuration defaults.
const (
	DefaultAddr              = ":3000"
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second

	TransportTelegram = "telegram"
	TransportTwilio   = "twilio"

	TwilioWebhookPath = "/twilio/webhook"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr            string
	Transport       string
	Domain          string
	BotToken        string
	StateDir        string
	ShutdownTimeout time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address, e.g. ":3000".
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTransport selects the messaging transport ("telegram" or "twilio").
func WithTransport(transport string) Option {
	return func(o *Opts) { o.Transport = transport }
}

// WithDomain sets the public domain used to register the Telegram webhook.
func WithDomain(domain string) Option {
	return func(o *Opts) { o.Domain = domain }
}

// WithBotToken sets the Telegram bot token guarding the webhook route.
func WithBotToken(token string) Option {
	return func(o *Opts) { o.BotToken = token }
}

// WithStateDir locks the state directory for the lifetime of Run.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.StateDir = dir }
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ShutdownTimeout = d }
}

// Modules carries the options of every module Run constructs.
type Modules struct {
	Telegram []telegram.Option
	Twilio   []twiliowhatsapp.Option
	Store    []store.Option
	Images   []imagegen.Option
	Pinning  []pinning.Option
	Minting  []minting.Option
	Flow     []flow.Option
}

// Server wires the messaging transport to the agent flow and serves HTTP.
type Server struct {
	msgService  messaging.Service
	respHandler *messaging.ResponseHandler
	st          store.Store
	agent       *flow.AgentFlow
	transport   string
	botToken    string
	webhook     http.HandlerFunc
	router      chi.Router
}

// NewServer creates a Server. webhook receives the transport's inbound
// deliveries: for Telegram it is mounted at /telegram/{token}, for Twilio at
// TwilioWebhookPath.
func NewServer(msgService messaging.Service, webhook http.HandlerFunc, st store.Store, agent *flow.AgentFlow, opts ...Option) *Server {
	cfg := Opts{Transport: TransportTelegram}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		msgService:  msgService,
		respHandler: messaging.NewResponseHandler(msgService, agent, st, st),
		st:          st,
		agent:       agent,
		transport:   cfg.Transport,
		botToken:    cfg.BotToken,
		webhook:     webhook,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/favicon.ico", faviconHandler)
	r.Get("/health", s.healthHandler)
	r.Get("/receipts", s.receiptsHandler)
	r.Get("/mints", s.mintsHandler)

	switch s.transport {
	case TransportTwilio:
		r.Post(TwilioWebhookPath, s.webhook)
	default:
		r.Post(messaging.WebhookPath("{token}"), s.telegramWebhookHandler)
	}
	return r
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the transport, the response handler and the receipt recorder.
func (s *Server) Start(ctx context.Context) error {
	if err := s.msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	s.respHandler.Start(ctx)
	go s.recordReceipts(ctx)
	return nil
}

// Stop stops taking inbound messages, waits until ctx is done for queued
// conversations to finish, then stops the transport.
func (s *Server) Stop(ctx context.Context) error {
	err := s.respHandler.Stop(ctx)
	if err != nil {
		slog.Warn("Server.Stop: conversations still running at deadline", "error", err)
	}
	if stopErr := s.msgService.Stop(); stopErr != nil {
		slog.Warn("Server.Stop: messaging service stop failed", "error", stopErr)
	}
	return err
}

// recordReceipts persists delivery receipts until the channel closes.
func (s *Server) recordReceipts(ctx context.Context) {
	for {
		select {
		case receipt, ok := <-s.msgService.Receipts():
			if !ok {
				return
			}
			if err := s.st.AddReceipt(receipt); err != nil {
				slog.Warn("Server failed to record receipt", "error", err, "to", receipt.To)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Run builds every module from its options, serves HTTP and blocks until
// SIGINT or SIGTERM.
func Run(mods Modules, opts ...Option) error {
	cfg := Opts{Addr: DefaultAddr, Transport: TransportTelegram, ShutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("api.Run: configuration", "addr", cfg.Addr, "transport", cfg.Transport, "domain", cfg.Domain, "state_dir", cfg.StateDir)

	if cfg.StateDir != "" {
		lock, err := lockfile.AcquireLock(cfg.StateDir)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	st, err := store.New(mods.Store...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	msgService, webhook, err := newMessagingService(cfg, mods)
	if err != nil {
		return err
	}

	images, err := imagegen.NewClient(mods.Images...)
	if err != nil {
		return fmt.Errorf("failed to create image client: %w", err)
	}
	if c, ok := images.(io.Closer); ok {
		defer c.Close()
	}
	pinner, err := pinning.NewClient(mods.Pinning...)
	if err != nil {
		return fmt.Errorf("failed to create pinning client: %w", err)
	}
	defer pinner.Close()
	minter, err := minting.NewClient(mods.Minting...)
	if err != nil {
		return fmt.Errorf("failed to create minting client: %w", err)
	}
	slog.Info("Minting client ready", "signer", minter.SignerAddress().Hex())

	flowOpts := append([]flow.Option{flow.WithMintRecorder(st)}, mods.Flow...)
	agent := flow.NewAgentFlow(msgService, images, pinner, minter, flowOpts...)

	srv := NewServer(msgService, webhook, st, agent, opts...)

	// runCtx outlives the shutdown signal so queued conversations can finish.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(runCtx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("AgentMint API listening", "addr", cfg.Addr, "transport", cfg.Transport)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	_ = srv.Stop(shutdownCtx)
	cancelRun()
	return runErr
}

// newMessagingService builds the configured transport and its webhook handler.
func newMessagingService(cfg Opts, mods Modules) (messaging.Service, http.HandlerFunc, error) {
	switch cfg.Transport {
	case TransportTwilio:
		client, err := twiliowhatsapp.NewClient(mods.Twilio...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create twilio client: %w", err)
		}
		svc := messaging.NewTwilioService(client)
		return svc, svc.TwilioWebhookHandler, nil

	case TransportTelegram, "":
		if cfg.BotToken == "" {
			return nil, nil, fmt.Errorf("telegram transport requires a bot token")
		}
		tgOpts := append([]telegram.Option{telegram.WithToken(cfg.BotToken)}, mods.Telegram...)
		client, err := telegram.NewClient(tgOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create telegram client: %w", err)
		}
		webhookURL := ""
		if cfg.Domain != "" {
			webhookURL = messaging.WebhookURL(cfg.Domain, cfg.BotToken)
		}
		slog.Info("Telegram transport ready", "bot", client.Username(), "webhook_set", webhookURL != "")
		svc := messaging.NewTelegramService(client, webhookURL)
		return svc, svc.WebhookHandler, nil

	default:
		return nil, nil, fmt.Errorf("unknown messaging transport %q", cfg.Transport)
	}
}
