package provider

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focal-labs/snapledger/internal/common"
)

func testFactoryConfig() Config {
	return Config{
		DefaultProvider: "openai",
		Secrets: map[string]string{
			"gemini_api_key":          "gem-primary",
			"gemini_api_key_fallback": "gem-fallback",
			"openai_api_key":          "oai-primary",
			"nvidia_api_key":          "nv-primary",
			"hybrid_api_key":          "hy-primary",
		},
		OCREndpoint: "https://vision.example.com",
		OCRAPIKey:   "ocr-key",
	}
}

func TestFactoryResolve(t *testing.T) {
	factory := NewFactory(testFactoryConfig(), slog.Default())

	t.Run("user preference wins", func(t *testing.T) {
		selection, err := factory.Resolve("gemini")
		require.NoError(t, err)
		assert.Equal(t, TypeGemini, selection.Provider)
		assert.Equal(t, "gemini-2.5-flash", selection.Model)
		assert.IsType(t, &geminiExtractor{}, selection.Extractor)
	})

	t.Run("deployment default when no preference", func(t *testing.T) {
		selection, err := factory.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, TypeOpenAI, selection.Provider)
		assert.Equal(t, "gpt-4o", selection.Model)
	})

	t.Run("hardcoded fallback when nothing configured", func(t *testing.T) {
		cfg := testFactoryConfig()
		cfg.DefaultProvider = ""
		selection, err := NewFactory(cfg, slog.Default()).Resolve("")
		require.NoError(t, err)
		assert.Equal(t, TypeGemini, selection.Provider)
	})

	t.Run("preference is case insensitive", func(t *testing.T) {
		selection, err := factory.Resolve("NVIDIA")
		require.NoError(t, err)
		assert.Equal(t, TypeNvidia, selection.Provider)
	})

	t.Run("credential ordering primary then fallback", func(t *testing.T) {
		selection, err := factory.Resolve("gemini")
		require.NoError(t, err)
		gemini, ok := selection.Extractor.(*geminiExtractor)
		require.True(t, ok)
		assert.Equal(t, []string{"gem-primary", "gem-fallback"}, gemini.apiKeys)
	})

	t.Run("single key when no fallback configured", func(t *testing.T) {
		selection, err := factory.Resolve("openai")
		require.NoError(t, err)
		openai, ok := selection.Extractor.(*openAIExtractor)
		require.True(t, ok)
		assert.Equal(t, []string{"oai-primary"}, openai.apiKeys)
	})

	t.Run("missing primary credential fails fast", func(t *testing.T) {
		cfg := testFactoryConfig()
		delete(cfg.Secrets, "nvidia_api_key")
		_, err := NewFactory(cfg, slog.Default()).Resolve("nvidia")

		var cfgErr *common.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "nvidia_api_key", cfgErr.Name)
	})

	t.Run("hybrid needs the ocr dependency", func(t *testing.T) {
		cfg := testFactoryConfig()
		cfg.OCREndpoint = ""
		_, err := NewFactory(cfg, slog.Default()).Resolve("hybrid")

		var cfgErr *common.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "ocr_endpoint", cfgErr.Name)
	})

	t.Run("unknown provider type", func(t *testing.T) {
		_, err := factory.Resolve("watson")
		var cfgErr *common.ConfigError
		assert.True(t, errors.As(err, &cfgErr))
	})

	t.Run("model override", func(t *testing.T) {
		cfg := testFactoryConfig()
		cfg.Models = map[string]string{"gemini": "gemini-2.5-pro"}
		selection, err := NewFactory(cfg, slog.Default()).Resolve("gemini")
		require.NoError(t, err)
		assert.Equal(t, "gemini-2.5-pro", selection.Model)
	})
}

func TestFactoryResolveAudio(t *testing.T) {
	t.Run("audio always routes to gemini", func(t *testing.T) {
		factory := NewFactory(testFactoryConfig(), slog.Default())
		selection, err := factory.ResolveAudio()
		require.NoError(t, err)
		assert.Equal(t, TypeGemini, selection.Provider)
	})

	t.Run("missing gemini key fails audio", func(t *testing.T) {
		cfg := testFactoryConfig()
		delete(cfg.Secrets, "gemini_api_key")
		_, err := NewFactory(cfg, slog.Default()).ResolveAudio()

		var cfgErr *common.ConfigError
		assert.True(t, errors.As(err, &cfgErr))
	})
}

func TestDefaultModel(t *testing.T) {
	assert.Equal(t, "gemini-2.5-flash", DefaultModel(TypeGemini))
	assert.Equal(t, "gpt-4o", DefaultModel(TypeOpenAI))
	assert.Equal(t, "meta/llama-3.2-90b-vision-instruct", DefaultModel(TypeNvidia))
	assert.Equal(t, "gpt-4o-mini", DefaultModel(TypeHybrid))
	assert.Empty(t, DefaultModel(Type("watson")))
}
