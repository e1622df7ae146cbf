package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sahayak-app/sahayak/pkg/config"
)

const (
	ProviderNVIDIA     = "nvidia"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

type providerDefaults struct {
	apiBase string
	model   string
}

// All supported providers speak the OpenAI chat-completions dialect;
// they differ only in base URL and default model.
var knownProviders = map[string]providerDefaults{
	ProviderNVIDIA: {
		apiBase: "https://integrate.api.nvidia.com/v1",
		model:   "meta/llama-4-scout-17b-16e-instruct",
	},
	ProviderOpenAI: {
		apiBase: "https://api.openai.com/v1",
		model:   "gpt-5-mini",
	},
	ProviderOpenRouter: {
		apiBase: "https://openrouter.ai/api/v1",
		model:   "meta-llama/llama-4-scout",
	},
}

func SupportedProviders() []string {
	names := make([]string, 0, len(knownProviders))
	for name := range knownProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NormalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderNVIDIA
	}
	return name
}

func ValidateProviderConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	name := NormalizeProviderName(cfg.Provider.Name)
	if _, ok := knownProviders[name]; !ok {
		return fmt.Errorf("unsupported provider %q: supported providers are %s", name, strings.Join(SupportedProviders(), ", "))
	}
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		return fmt.Errorf("%s API key is required (set provider.api_key or SAHAYAK_PROVIDER_API_KEY)", name)
	}
	return nil
}

func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	if err := ValidateProviderConfig(cfg); err != nil {
		return nil, err
	}

	name := NormalizeProviderName(cfg.Provider.Name)
	defaults := knownProviders[name]

	apiBase := strings.TrimSpace(cfg.Provider.APIBase)
	if apiBase == "" {
		apiBase = defaults.apiBase
	}
	model := strings.TrimSpace(cfg.Provider.Model)
	if model == "" {
		model = defaults.model
	}

	var extraHeaders map[string]string
	if name == ProviderOpenRouter {
		extraHeaders = map[string]string{
			"HTTP-Referer": "https://github.com/sahayak-app/sahayak",
			"X-Title":      "Sahayak",
		}
	}

	return newChatCompletionsProvider(name, apiBase, model, cfg.Provider.APIKey, cfg.Provider.Proxy, extraHeaders)
}
