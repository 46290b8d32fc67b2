package imagegen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// imageService defines the minimal interface for the OpenAI images endpoint.
type imageService interface {
	Generate(ctx context.Context, body openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

// OpenAIClient generates images through the OpenAI images API.
type OpenAIClient struct {
	images imageService
	model  openai.ImageModel
}

func newOpenAIClient(cfg Opts) *OpenAIClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithRequestTimeout(cfg.Timeout)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	model := openai.ImageModelDallE3
	if cfg.Model != "" {
		model = openai.ImageModel(cfg.Model)
	}
	return &OpenAIClient{images: &cli.Images, model: model}
}

// GenerateImage requests a single URL-formatted image for the prompt.
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	slog.Debug("OpenAIClient GenerateImage", "model", c.model, "prompt_length", len(prompt))

	resp, err := c.images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          c.model,
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		slog.Error("OpenAIClient GenerateImage failed", "error", err, "model", c.model)
		return "", fmt.Errorf("openai image generation failed: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].URL == "" {
		slog.Warn("OpenAIClient GenerateImage returned no images", "model", c.model)
		return "", ErrNoImagesGenerated
	}

	slog.Info("OpenAIClient GenerateImage succeeded", "model", c.model, "count", len(resp.Data))
	return resp.Data[0].URL, nil
}
