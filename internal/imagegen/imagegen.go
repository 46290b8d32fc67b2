// Package imagegen turns a text prompt into a hosted image URL.
//
// Two backends are supported: the fal.ai REST API (default) and the OpenAI
// images endpoint. Both return the URL of the first generated image.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Backend names accepted by WithBackend.
const (
	BackendFal    = "fal"
	BackendOpenAI = "openai"
)

// DefaultTimeout bounds a single generation request.
const DefaultTimeout = 2 * time.Minute

// ErrNoImagesGenerated is returned when the service answers without any image.
var ErrNoImagesGenerated = errors.New("no images generated")

// Generator produces an image for a prompt and returns its URL.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Opts holds configuration options for the image generation client.
type Opts struct {
	Backend string
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Option defines a configuration option for the image generation client.
type Option func(*Opts)

// WithBackend selects the image service backend ("fal" or "openai").
func WithBackend(backend string) Option {
	return func(o *Opts) { o.Backend = backend }
}

// WithAPIKey sets the service credential.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the model or fal application id.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithBaseURL overrides the service base URL (used by tests).
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// NewClient builds the Generator for the configured backend.
// When no API key is given it falls back to FAL_API_KEY or OPENAI_API_KEY.
func NewClient(opts ...Option) (Generator, error) {
	cfg := Opts{Backend: BackendFal, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	switch cfg.Backend {
	case BackendFal:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("FAL_API_KEY")
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("FAL_API_KEY not set")
		}
		slog.Debug("imagegen.NewClient: using fal backend", "model", cfg.Model, "base_url_set", cfg.BaseURL != "")
		return newFalClient(cfg), nil
	case BackendOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		slog.Debug("imagegen.NewClient: using openai backend", "model", cfg.Model)
		return newOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown image backend %q", cfg.Backend)
	}
}
