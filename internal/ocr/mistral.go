package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	mistralBaseURL = "https://api.mistral.ai/v1"
	mistralModel   = "pixtral-large-latest"

	// The extraction prompt is kept in French to match the documents.
	mistralPrompt = "Extrais tout le texte trouvé dans cette image"

	mistralMaxTokens = 300
)

// MistralProvider extracts text by asking the Mistral vision model to read
// the page. The Mistral API is OpenAI-compatible, so the go-openai client is
// pointed at the Mistral endpoint.
type MistralProvider struct {
	client *openai.Client
	model  string
}

// NewMistralProvider creates a Mistral-backed provider using the MISTRAL_API
// environment variable for authentication.
func NewMistralProvider() (*MistralProvider, error) {
	apiKey := os.Getenv("MISTRAL_API")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: MISTRAL_API environment variable must be set", ErrMissingCredentials)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = mistralBaseURL
	return &MistralProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  mistralModel,
	}, nil
}

// newMistralProviderWithBaseURL is used by tests to point the client at a
// stub server.
func newMistralProviderWithBaseURL(apiKey, baseURL string) *MistralProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &MistralProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  mistralModel,
	}
}

// Name implements Provider.
func (p *MistralProvider) Name() string { return "mistral" }

// ExtractText implements Provider. The page bytes are inlined as a data URL
// so no public object URL is required.
func (p *MistralProvider) ExtractText(ctx context.Context, page []byte) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(page)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: mistralMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: mistralPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("mistral API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResult
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}
