package deploy

import (
	"os"
	"path/filepath"
)

// Scorer rates how well a provider fits a deployment request during
// automatic selection. Scores are clamped to [0, 1]; anything below the
// registry's minimum confidence is treated as unsuitable.
type Scorer interface {
	Score(p Provider, cfg Config) (confidence float64, reason string)
}

// HintScorer is the default scorer. It awards a base confidence to any
// provider that supports the requested environment and raises it for
// each project hint file found under the project path.
type HintScorer struct {
	// Base is the confidence for a provider whose environments match
	// but whose hints do not. Defaults to 0.4 via DefaultScorer.
	Base float64
	// PerHint is added for each hint file present, up to 1.0.
	PerHint float64
}

// DefaultScorer returns a HintScorer with the stock weights.
func DefaultScorer() *HintScorer {
	return &HintScorer{Base: 0.4, PerHint: 0.3}
}

func (s *HintScorer) Score(p Provider, cfg Config) (float64, string) {
	caps := p.Capabilities()
	if !caps.SupportsEnvironment(cfg.Environment) {
		return 0, "environment not supported"
	}

	confidence := s.Base
	reason := "environment supported"
	for _, hint := range caps.ProjectHints {
		if _, err := os.Stat(filepath.Join(cfg.ProjectPath, hint)); err == nil {
			confidence += s.PerHint
			reason = "project hints matched"
		}
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence, reason
}
