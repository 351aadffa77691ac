package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v3"

	"doc-quotes/internal/cache"
	"doc-quotes/internal/config"
	"doc-quotes/internal/corpus"
	"doc-quotes/internal/llm"
	"doc-quotes/internal/logger"
	"doc-quotes/internal/prompt"
	"doc-quotes/internal/session"
)

// Deps bundles common runtime dependencies for the relay.
type Deps struct {
	Config  config.Config
	Log     *slog.Logger
	Docs    *corpus.Store
	LLM     llm.Client
	Cache   cache.Cache
	Session *session.Controller
}

// Build loads env, config, and shared components.
func Build() (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	llmClient, err := buildLLM(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	c, err := buildCache(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}

	docs := corpus.NewStore()
	builder := prompt.Builder{DocCharLimit: cfg.DocCharLimit}
	ctrl := session.New(log, docs, builder, llmClient, cfg.LLMProvider, c, time.Duration(cfg.CacheTTL)*time.Second)

	return Deps{
		Config:  cfg,
		Log:     log,
		Docs:    docs,
		LLM:     llmClient,
		Cache:   c,
		Session: ctrl,
	}, nil
}

// buildLLM selects exactly one provider adapter. Each adapter carries its own
// auth shape; switching LLM_PROVIDER never reuses another provider's headers.
func buildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, openai.ChatModel(cfg.OpenAIModel), int64(cfg.MaxTokens))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", cfg.OpenAIModel)
		return client, nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
		client, err := llm.NewAnthropicClient(cfg.AnthropicKey, cfg.AnthropicBaseURL, cfg.AnthropicModel, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Anthropic client: %w", err)
		}
		log.Info("using Anthropic LLM client", "model", cfg.AnthropicModel)
		return client, nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
		client, err := llm.NewGeminiClient(cfg.GeminiKey, cfg.GeminiBaseURL, cfg.GeminiModel, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		log.Info("using Gemini LLM client", "model", cfg.GeminiModel)
		return client, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: openai, anthropic, gemini)", cfg.LLMProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis cache: %w", err)
		}
		log.Info("using Redis cache", "addr", cfg.RedisAddr)
		return c, nil
	case "noop":
		log.Info("query caching disabled")
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: noop, redis)", cfg.CacheProvider)
	}
}
