package oracle

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genai"
)

// NewGemini returns a Labeler backed by the Gemini API. An empty apiKey
// lets the client read GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGemini(ctx context.Context, apiKey, model string, cacheSize int, timeout time.Duration) (*Labeler, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	temperature := float32(0.2)
	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := cli.Models.GenerateContent(ctx, model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			&genai.GenerateContentConfig{
				ResponseMIMEType: "application/json",
				Temperature:      &temperature,
			},
		)
		if err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", errors.New("empty candidate list")
		}
		return resp.Candidates[0].Content.Parts[0].Text, nil
	}

	return New("gemini:"+model, generate, cacheSize, timeout)
}
