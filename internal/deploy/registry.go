package deploy

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultMinConfidence is the floor below which automatic selection
// refuses to pick a provider.
const DefaultMinConfidence = 0.3

// Registry holds the registered providers and implements provider
// selection. Registration order matters: it is the iteration order for
// listings and the tie-breaker for automatic selection.
type Registry struct {
	mu            sync.RWMutex
	providers     map[string]Provider
	order         []string
	scorer        Scorer
	minConfidence float64
}

// NewRegistry returns a registry using the default scorer and minimum
// confidence.
func NewRegistry() *Registry {
	return &Registry{
		providers:     make(map[string]Provider),
		scorer:        DefaultScorer(),
		minConfidence: DefaultMinConfidence,
	}
}

// SetScorer replaces the automatic-selection scorer.
func (r *Registry) SetScorer(s Scorer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scorer = s
}

// Register adds a provider under its own name. Duplicate names are
// rejected so a later registration can never shadow an earlier one.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q is already registered", name)
	}
	r.providers[name] = p
	r.order = append(r.order, name)
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// List returns the registered providers in registration order.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Select picks a provider for the config. An explicit platform must
// match a registered provider's platform exactly and selects it with
// full confidence; "auto" (or empty) asks the scorer. Ties keep the
// earliest registered provider.
func (r *Registry) Select(cfg Config) (Provider, Selection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platform := cfg.Platform
	if platform != "" && platform != PlatformAuto {
		for _, name := range r.order {
			p := r.providers[name]
			if p.Capabilities().Platform == platform {
				return p, Selection{
					Provider:   p.Name(),
					Platform:   platform,
					Reason:     "explicit platform",
					Confidence: 1.0,
				}, nil
			}
		}
		return nil, Selection{}, &NoSuitableProviderError{Platform: platform}
	}

	var (
		best       Provider
		bestScore  float64
		bestReason string
	)
	for _, name := range r.order {
		p := r.providers[name]
		score, reason := r.scorer.Score(p, cfg)
		if score > bestScore {
			best, bestScore, bestReason = p, score, reason
		}
	}
	if best == nil || bestScore < r.minConfidence {
		return nil, Selection{}, &NoSuitableProviderError{Platform: PlatformAuto}
	}
	return best, Selection{
		Provider:   best.Name(),
		Platform:   best.Capabilities().Platform,
		Reason:     bestReason,
		Confidence: bestScore,
	}, nil
}

// ProviderFor maps a deployment id back to the provider that owns it.
// Ids carry their provider's name as a "<name>-" prefix.
func (r *Registry) ProviderFor(deploymentID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if strings.HasPrefix(deploymentID, name+"-") {
			return r.providers[name], nil
		}
	}
	return nil, &DeploymentNotFoundError{DeploymentID: deploymentID}
}
