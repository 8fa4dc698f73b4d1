package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"reelscope/pkg/config"
	"reelscope/pkg/logger"
)

// Client generates text from prompts, optionally grounded on video
// frames. The scenario pipeline depends only on this interface so tests
// can swap in a fake.
type Client interface {
	// Complete generates text for a plain prompt
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteWithFrames generates text for a prompt plus JPEG frames
	CompleteWithFrames(ctx context.Context, prompt string, frames [][]byte) (string, error)
	// Close releases resources held by the client
	Close() error
}

// GeminiClient implements Client against the Gemini API
type GeminiClient struct {
	client *genai.Client
	cfg    config.GenerationConfig
	logger logger.Logger
}

// NewClient creates a Gemini-backed generation client
func NewClient(ctx context.Context, cfg config.GenerationConfig, log logger.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation API key is required")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	return &GeminiClient{
		client: client,
		cfg:    cfg,
		logger: log,
	}, nil
}

// Complete generates text for a plain prompt using the text model
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.cfg.TextModel)
	model.SetTemperature(c.cfg.Temperature)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return extractText(resp)
}

// CompleteWithFrames generates text for a prompt grounded on video
// frames using the vision model. Frames beyond the configured maximum
// are dropped from the tail.
func (c *GeminiClient) CompleteWithFrames(ctx context.Context, prompt string, frames [][]byte) (string, error) {
	if len(frames) == 0 {
		return "", fmt.Errorf("at least one frame is required")
	}
	if c.cfg.MaxFrames > 0 && len(frames) > c.cfg.MaxFrames {
		frames = frames[:c.cfg.MaxFrames]
	}

	model := c.client.GenerativeModel(c.cfg.VisionModel)
	model.SetTemperature(c.cfg.Temperature)

	parts := make([]genai.Part, 0, len(frames)+1)
	parts = append(parts, genai.Text(prompt))
	for _, frame := range frames {
		parts = append(parts, genai.ImageData("jpeg", frame))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate vision content: %w", err)
	}
	return extractText(resp)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractText flattens the first candidate's text parts
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}
