package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"resty.dev/v3"
)

const (
	// DefaultFalBaseURL is the synchronous fal.ai run endpoint.
	DefaultFalBaseURL = "https://fal.run"
	// DefaultFalModel is the fal application used for agent portraits.
	DefaultFalModel = "fal-ai/stable-cascade"
)

type falRequest struct {
	Prompt string `json:"prompt"`
}

type falImage struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

type falResponse struct {
	Images []falImage `json:"images"`
	Seed   int64      `json:"seed,omitempty"`
}

// FalClient calls a fal.ai application over its REST API.
type FalClient struct {
	http  *resty.Client
	model string
}

func newFalClient(cfg Opts) *FalClient {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultFalBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultFalModel
	}
	// fal expects "Authorization: Key <credential>".
	c := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthScheme("Key").
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json")
	return &FalClient{http: c, model: model}
}

// GenerateImage runs the configured fal application and returns the first image URL.
func (c *FalClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	slog.Debug("FalClient GenerateImage", "model", c.model, "prompt_length", len(prompt))

	var out falResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(falRequest{Prompt: prompt}).
		SetResult(&out).
		Post("/" + c.model)
	if err != nil {
		slog.Error("FalClient GenerateImage request failed", "error", err, "model", c.model)
		return "", fmt.Errorf("fal request failed: %w", err)
	}
	if res.IsError() {
		slog.Error("FalClient GenerateImage bad status", "status", res.StatusCode(), "model", c.model)
		return "", fmt.Errorf("fal returned status %d: %s", res.StatusCode(), res.String())
	}
	if len(out.Images) == 0 || out.Images[0].URL == "" {
		slog.Warn("FalClient GenerateImage returned no images", "model", c.model)
		return "", ErrNoImagesGenerated
	}

	slog.Info("FalClient GenerateImage succeeded", "model", c.model, "count", len(out.Images))
	return out.Images[0].URL, nil
}

// Close releases the underlying HTTP client.
func (c *FalClient) Close() error {
	return c.http.Close()
}
