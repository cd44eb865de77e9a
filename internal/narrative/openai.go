package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Defaults for the hosted chat-completions endpoint.
const (
	DefaultBaseURL     = "https://router.huggingface.co/v1/"
	DefaultModel       = "mistralai/Mistral-7B-Instruct-v0.2"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.8
)

// DefaultPersona is the standing instruction given to the model.
const DefaultPersona = `You are the game master of a collaborative text roleplay set in a world of soul reapers, hollows and humans.
Describe the consequences of the player's action in the third person, in two to four vivid sentences.
Stay consistent with the situation you are given. Never act or speak for the player's character.
Do not add commentary, headings or out-of-character notes.`

// OpenAIConfig configures an OpenAI-compatible chat-completions client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Persona     string
	MaxTokens   int
	Temperature float64
}

// OpenAIGenerator calls a chat-completions endpoint.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	persona string
	tokens  int64
	temp    float64
}

// NewOpenAIGenerator creates a generator. Failed calls are not retried.
func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Persona == "" {
		cfg.Persona = DefaultPersona
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	return &OpenAIGenerator{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		persona: cfg.Persona,
		tokens:  int64(cfg.MaxTokens),
		temp:    cfg.Temperature,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, contextSummary, actor, action string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(g.persona, contextSummary)),
			openai.UserMessage(actionPrompt(actor, action)),
		},
		MaxTokens:   openai.Int(g.tokens),
		Temperature: openai.Float(g.temp),
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}
