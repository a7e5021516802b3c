package provider

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/focal-labs/snapledger/internal/common"
)

// Type identifies an extraction backend.
type Type string

// Supported provider types.
const (
	TypeGemini Type = "gemini"
	TypeOpenAI Type = "openai"
	TypeNvidia Type = "nvidia"
	TypeHybrid Type = "hybrid"
)

// defaultModels maps each provider type to the model used when no override
// is configured.
var defaultModels = map[Type]string{
	TypeGemini: "gemini-2.5-flash",
	TypeOpenAI: "gpt-4o",
	TypeNvidia: "meta/llama-3.2-90b-vision-instruct",
	TypeHybrid: "gpt-4o-mini",
}

// DefaultModel returns the default model name for a provider type, or the
// empty string for unknown types.
func DefaultModel(t Type) string {
	return defaultModels[t]
}

// Config carries the deployment configuration the factory resolves
// selections from. Secrets is a flat map of named secrets following the
// convention "<type>_api_key" plus an optional "<type>_api_key_fallback".
type Config struct {
	Secrets         map[string]string
	Models          map[string]string
	DefaultProvider string
	OCREndpoint     string
	OCRAPIKey       string
}

// Selection is a resolved provider choice for one request: the type, the
// model, and a constructed adapter holding the ordered credential set.
type Selection struct {
	Extractor Extractor
	Provider  Type
	Model     string
}

// Factory resolves provider selections from configuration and user
// preference.
type Factory struct {
	cfg    Config
	logger *slog.Logger
}

// NewFactory creates a provider factory.
func NewFactory(cfg Config, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{cfg: cfg, logger: logger}
}

// Resolve picks a provider type (user preference, then the deployment
// default, then gemini), resolves its credential set, and constructs the
// adapter. Missing primary credentials and missing hybrid dependencies
// fail fast with a ConfigError.
func (f *Factory) Resolve(preference string) (*Selection, error) {
	providerType := f.resolveType(preference)

	credentials, err := f.credentialSet(providerType)
	if err != nil {
		return nil, err
	}

	modelName := f.modelFor(providerType)

	var extractor Extractor
	switch providerType {
	case TypeGemini:
		extractor = newGeminiExtractor(credentials, modelName, f.logger)
	case TypeOpenAI:
		extractor = newOpenAIExtractor(credentials, modelName, f.logger)
	case TypeNvidia:
		extractor = newNvidiaExtractor(credentials, modelName, f.logger)
	case TypeHybrid:
		ocr, ocrErr := f.ocrClient()
		if ocrErr != nil {
			return nil, ocrErr
		}
		extractor = newHybridExtractor(credentials, modelName, ocr, f.logger)
	default:
		return nil, &common.ConfigError{
			Name: "provider",
			Err:  fmt.Errorf("unknown provider type %q: %w", providerType, common.ErrInvalidConfig),
		}
	}

	return &Selection{Provider: providerType, Model: modelName, Extractor: extractor}, nil
}

// ResolveAudio resolves the provider used for voice notes. Audio always
// goes through gemini, the only backend with native audio input.
func (f *Factory) ResolveAudio() (*Selection, error) {
	credentials, err := f.credentialSet(TypeGemini)
	if err != nil {
		return nil, err
	}
	modelName := f.modelFor(TypeGemini)
	return &Selection{
		Provider:  TypeGemini,
		Model:     modelName,
		Extractor: newGeminiExtractor(credentials, modelName, f.logger),
	}, nil
}

func (f *Factory) resolveType(preference string) Type {
	if preference != "" {
		return Type(strings.ToLower(preference))
	}
	if f.cfg.DefaultProvider != "" {
		return Type(strings.ToLower(f.cfg.DefaultProvider))
	}
	return TypeGemini
}

func (f *Factory) modelFor(t Type) string {
	if override := f.cfg.Models[string(t)]; override != "" {
		return override
	}
	return defaultModels[t]
}

// credentialSet resolves the ordered credential list for a provider from
// the secret naming convention: primary first, then the optional fallback.
func (f *Factory) credentialSet(t Type) ([]string, error) {
	primaryName := string(t) + "_api_key"
	primary := f.cfg.Secrets[primaryName]
	if primary == "" {
		return nil, &common.ConfigError{Name: primaryName}
	}

	credentials := []string{primary}
	if fallback := f.cfg.Secrets[primaryName+"_fallback"]; fallback != "" {
		credentials = append(credentials, fallback)
	}
	return credentials, nil
}

// ocrClient builds the text-recognition client the hybrid adapter depends
// on.
func (f *Factory) ocrClient() (*azureReadClient, error) {
	if f.cfg.OCREndpoint == "" {
		return nil, &common.ConfigError{Name: "ocr_endpoint"}
	}
	if f.cfg.OCRAPIKey == "" {
		return nil, &common.ConfigError{Name: "ocr_api_key"}
	}
	return newAzureReadClient(f.cfg.OCREndpoint, f.cfg.OCRAPIKey), nil
}
