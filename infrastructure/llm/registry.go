package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketbridge/go-council/internal/ports"
)

// Registry manages forecast clients across multiple vendors with shared
// default settings. Clients are created lazily and cached per
// provider/model pair; each client carries its own middleware chain, so
// rate limiting and circuit breaking stay independent between vendors.
type Registry struct {
	// providers maps provider names to their configuration.
	providers map[string]ProviderConfig
	// clients caches "provider/model" keys to constructed clients.
	clients map[string]ports.ForecastClient
	// defaultMiddleware is applied to every client unless overridden.
	defaultMiddleware []Middleware
	// defaultTimeout sets the request timeout for all providers.
	defaultTimeout time.Duration

	logger zerolog.Logger
	mu     sync.RWMutex
}

// ProviderConfig holds per-vendor settings, overriding registry defaults
// for a specific provider.
type ProviderConfig struct {
	// Type selects the vendor implementation (anthropic, openai, google).
	Type string
	// EnvVar names the environment variable holding the API key.
	EnvVar string
	// DefaultModel is used when no model is specified.
	DefaultModel string
	// BaseURL overrides the vendor's default API endpoint.
	BaseURL string
	// Middleware is appended after the registry defaults.
	Middleware []Middleware
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Providers defines the available vendors.
	Providers map[string]ProviderConfig
	// DefaultTimeout is the per-request timeout applied to all clients.
	DefaultTimeout time.Duration
	// DefaultMiddleware is applied to every client, outermost first.
	DefaultMiddleware []Middleware
}

// DefaultProviders lists the standard vendor configurations. Callers can
// use this as a starting point and override individual settings.
var DefaultProviders = map[string]ProviderConfig{
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: AnthropicDefaultModel,
	},
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: OpenAIDefaultModel,
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: GoogleDefaultModel,
	},
}

// NewRegistry creates a registry over the given vendor configurations.
func NewRegistry(config RegistryConfig, logger zerolog.Logger) *Registry {
	providers := config.Providers
	if providers == nil {
		providers = DefaultProviders
	}
	return &Registry{
		providers:         providers,
		clients:           make(map[string]ports.ForecastClient),
		defaultMiddleware: config.DefaultMiddleware,
		defaultTimeout:    config.DefaultTimeout,
		logger:            logger,
	}
}

// GetClient retrieves a client by "provider" or "provider/model" spec,
// creating and caching it on first use.
func (r *Registry) GetClient(spec string) (ports.ForecastClient, error) {
	if spec == "" {
		return nil, fmt.Errorf("provider specification cannot be empty")
	}

	provider, model := r.parseSpec(spec)
	key := provider + "/" + model

	r.mu.RLock()
	if client, exists := r.clients[key]; exists {
		r.mu.RUnlock()
		return client, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, exists := r.clients[key]; exists {
		return client, nil
	}

	client, err := r.createClient(provider, model)
	if err != nil {
		return nil, err
	}

	r.clients[key] = client
	return client, nil
}

// BuildAdapters constructs the ensemble adapter set for the named
// provider specs. Each adapter wraps its client in retry logic so
// transient vendor failures are absorbed before the runner sees them.
func (r *Registry) BuildAdapters(specs []string, retry RetryConfig) ([]ports.ProviderAdapter, error) {
	adapters := make([]ports.ProviderAdapter, 0, len(specs))
	for _, spec := range specs {
		client, err := r.GetClient(spec)
		if err != nil {
			return nil, fmt.Errorf("building adapter for %q: %w", spec, err)
		}

		name, _ := r.parseSpec(spec)
		retrying := NewRetryingForecastClient(client, retry)
		adapters = append(adapters, NewEnsembleAdapter(name, retrying, r.logger))
	}
	return adapters, nil
}

// RegisterClient registers a client under the given provider name with
// explicit configuration, bypassing environment variable lookup.
func (r *Registry) RegisterClient(name string, config ClientConfig) error {
	if name == "" {
		return fmt.Errorf("client name cannot be empty")
	}

	provider, model := r.parseSpec(name)
	if model == "" {
		model = config.Model
	}

	providerConfig, exists := r.providers[provider]
	if !exists {
		return fmt.Errorf("unknown provider %q", provider)
	}

	if config.Timeout == 0 {
		config.Timeout = r.defaultTimeout
	}
	config.Middleware = append(append([]Middleware{}, r.defaultMiddleware...), config.Middleware...)

	client, err := NewClient(providerConfig.Type, config)
	if err != nil {
		return fmt.Errorf("failed to create client %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[provider+"/"+model] = client
	return nil
}

// RegisteredProviders returns the provider names with at least one
// cached client.
func (r *Registry) RegisteredProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for key := range r.clients {
		provider, _ := r.parseSpec(key)
		seen[provider] = true
	}

	providers := make([]string, 0, len(seen))
	for provider := range seen {
		providers = append(providers, provider)
	}
	return providers
}

// parseSpec splits "provider/model" into its parts, falling back to the
// provider's default model when no model is given.
func (r *Registry) parseSpec(spec string) (provider, model string) {
	parts := strings.SplitN(spec, "/", 2)
	provider = parts[0]

	if len(parts) > 1 {
		model = parts[1]
	} else if providerConfig, ok := r.providers[provider]; ok {
		model = providerConfig.DefaultModel
	}

	return
}

func (r *Registry) createClient(provider, model string) (ports.ForecastClient, error) {
	providerConfig, exists := r.providers[provider]
	if !exists {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	apiKey := os.Getenv(providerConfig.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", providerConfig.EnvVar, provider)
	}

	config := ClientConfig{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: providerConfig.BaseURL,
		Timeout: r.defaultTimeout,
	}
	config.Middleware = append([]Middleware{}, r.defaultMiddleware...)
	config.Middleware = append(config.Middleware, providerConfig.Middleware...)

	return NewClient(providerConfig.Type, config)
}
