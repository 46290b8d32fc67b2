// Package store provides storage backends for AgentMint.
//
// It persists the audit trail of the bot: inbound responses, outbound
// receipts, mint attempts and inbound deduplication records. Wizard sessions
// are held in memory by the flow package and are not stored here.
package store

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/AgentMint/internal/models"
)

// Store is the audit persistence used by the API server and the flow.
type Store interface {
	DedupRepo

	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)
	AddResponse(r models.Response) error
	GetResponses() ([]models.Response, error)
	AddMintRecord(r models.MintRecord) error
	GetMintRecords() ([]models.MintRecord, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN        string
	driverName string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN selects the Postgres backend with the given DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.driverName = "postgres"
	}
}

// WithSQLiteDSN selects the SQLite backend with the given database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.driverName = "sqlite3"
	}
}

// DetectDSNType returns "postgres" for Postgres URLs or keyword DSNs and
// "sqlite3" for anything else.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// New opens the backend selected by opts, falling back to an in-memory store
// when no DSN is configured.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("No database DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	driver := cfg.driverName
	if driver == "" {
		driver = DetectDSNType(cfg.DSN)
	}
	slog.Debug("store.New: opening backend", "driver", driver)
	if driver == "postgres" {
		return NewPostgresStore(WithPostgresDSN(cfg.DSN))
	}
	return NewSQLiteStore(WithSQLiteDSN(cfg.DSN))
}

// InMemoryStore keeps the audit trail in process memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	receipts  []models.Receipt
	responses []models.Response
	mints     []models.MintRecord
	dedup     map[string]*DedupRecord
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{dedup: make(map[string]*DedupRecord)}
}

func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Receipt(nil), s.receipts...), nil
}

func (s *InMemoryStore) AddResponse(r models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return nil
}

func (s *InMemoryStore) GetResponses() ([]models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Response(nil), s.responses...), nil
}

func (s *InMemoryStore) AddMintRecord(r models.MintRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mints = append(s.mints, r)
	return nil
}

func (s *InMemoryStore) GetMintRecords() ([]models.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.MintRecord(nil), s.mints...), nil
}

func (s *InMemoryStore) IsDuplicate(messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dedup[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(messageID, participantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[messageID]; ok {
		return false, nil
	}
	s.dedup[messageID] = &DedupRecord{MessageID: messageID, ParticipantID: participantID, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.dedup[messageID]; ok {
		now := time.Now()
		rec.ProcessedAt = &now
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
