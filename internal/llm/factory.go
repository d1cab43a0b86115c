package llm

import (
	"context"
	"fmt"
	"strings"

	"gemini-chat/internal/config"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderYandex = "yandex"
)

// Factory creates model gateways with consistent logic
type Factory struct {
	GeminiAPIKey       string
	GeminiModel        string
	OpenaiAPIKey       string
	OpenaiBaseURL      string
	OpenaiModel        string
	OpenRouterReferrer string
	OpenRouterTitle    string
	YandexOAuthToken   string
	YandexFolderID     string
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		GeminiAPIKey:       cfg.GeminiAPIKey,
		GeminiModel:        cfg.GeminiModel,
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenaiModel:        cfg.OpenAIModel,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
	}
}

func (f *Factory) CreateGateway(ctx context.Context, provider string) (Gateway, error) {
	switch strings.ToLower(provider) {
	case ProviderGemini:
		return NewGemini(ctx, f.GeminiAPIKey, f.GeminiModel)
	case ProviderOpenAI:
		if f.OpenaiAPIKey == "" {
			return nil, fmt.Errorf("openai api key is not configured")
		}
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, f.OpenaiModel, f.OpenRouterReferrer, f.OpenRouterTitle), nil
	case ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
