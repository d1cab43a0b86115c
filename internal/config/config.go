package config

import (
	"log"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Config struct {
	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey     string      `env:"GEMINI_API_KEY"`
	GeminiModel      string      `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`

	// History store
	RedisAddr          string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	MaxHistoryMessages int    `env:"MAX_HISTORY_MESSAGES" envDefault:"20"`

	// Store reconnect probe (cron spec, empty disables)
	StoreProbeSpec string `env:"STORE_PROBE_SPEC" envDefault:"@every 30s"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
