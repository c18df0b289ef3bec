package model

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/r3d91ll/patchscope/pkg/config"
	perrors "github.com/r3d91ll/patchscope/pkg/errors"
)

// LoadOptions identifies a model to acquire from a provider.
type LoadOptions struct {
	Name         string
	Provider     string
	Identifier   string
	DType        string
	Quantization string
	Decode       string
	Logger       *zap.Logger
}

// OptionsFromConfig builds LoadOptions for a configured model.
func OptionsFromConfig(name string, mc config.ModelConfig) LoadOptions {
	return LoadOptions{
		Name:         name,
		Provider:     mc.Provider,
		Identifier:   mc.Identifier,
		DType:        mc.DType,
		Quantization: mc.Quantization,
		Decode:       mc.Decode,
	}
}

// Loader acquires a model for a provider.
type Loader func(ctx context.Context, opts LoadOptions) (Model, error)

// Registry manages model providers.
type Registry struct {
	loaders map[string]Loader
	mu      sync.RWMutex
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(name string, loader Loader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.loaders[name]; exists {
		return perrors.Model(perrors.ErrProviderExists, "provider already registered").
			WithContext(perrors.ContextProvider, name)
	}
	r.loaders[name] = loader
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loaders[name]
	return l, ok
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Load acquires a model through the provider named in opts.
func (r *Registry) Load(ctx context.Context, opts LoadOptions) (Model, error) {
	loader, ok := r.Get(opts.Provider)
	if !ok {
		return nil, perrors.ProviderNotFound(opts.Provider, r.List())
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Logger.Info("loading model",
		zap.String("name", opts.Name),
		zap.String("provider", opts.Provider),
		zap.String("identifier", opts.Identifier))

	m, err := loader(ctx, opts)
	if err != nil {
		if _, ok := perrors.AsPatchError(err); ok {
			return nil, err
		}
		return nil, perrors.ModelLoadFailed(opts.Provider, opts.Identifier, err)
	}
	info := m.Info()
	opts.Logger.Info("model loaded",
		zap.String("structure", info.Structure),
		zap.Int("layers", info.Layers),
		zap.Int("hidden", info.Hidden))
	return m, nil
}
