package signal

import (
	"github.com/needscoop/needscoop/internal/textutil"
)

// Signal is one classification result. Weight carries the effective
// (boosted) weight for Detect and the definition's base weight for
// DetectAll.
type Signal struct {
	Type    string
	Matches []string
	Weight  float64
}

// MatchFunc adapts the detector for collectors that filter during
// collection. An empty signal type means the text carries no signal.
type MatchFunc func(text string) (signalType string, matches []string)

// Detector classifies text against a registry. It is a pure function of
// the text and the registry and is safe for concurrent use.
type Detector struct {
	registry *Registry
}

// NewDetector creates a detector over a loaded registry.
func NewDetector(registry *Registry) *Detector {
	return &Detector{registry: registry}
}

// Detect returns the strongest signal in the text, or nil.
//
// Text outside the length gates or containing an exclusion pattern never
// classifies. Each matching definition scores
// weight × (1 + 0.1 × (matches − 1)), so extra corroborating patterns
// within one definition raise its score by 10% each without letting match
// count alone dominate across definitions. Equal scores resolve to the
// earliest-declared definition.
func (d *Detector) Detect(text string) *Signal {
	normalized := textutil.Normalize(text)
	if !d.registry.eligible(normalized) || d.registry.excluded(normalized) {
		return nil
	}

	var best *Signal
	for _, def := range d.registry.definitions {
		matches := def.match(normalized)
		if len(matches) == 0 {
			continue
		}
		weight := def.Weight * (1 + 0.1*float64(len(matches)-1))
		if best == nil || weight > best.Weight {
			best = &Signal{Type: def.Name, Matches: matches, Weight: weight}
		}
	}
	return best
}

// DetectAll returns every definition with at least one match, in
// declaration order, each carrying its base weight and its own match list.
// The same eligibility gates apply as in Detect.
func (d *Detector) DetectAll(text string) []Signal {
	normalized := textutil.Normalize(text)
	if !d.registry.eligible(normalized) || d.registry.excluded(normalized) {
		return nil
	}

	var signals []Signal
	for _, def := range d.registry.definitions {
		matches := def.match(normalized)
		if len(matches) == 0 {
			continue
		}
		signals = append(signals, Signal{Type: def.Name, Matches: matches, Weight: def.Weight})
	}
	return signals
}

// Matcher returns a MatchFunc wrapping Detect.
func (d *Detector) Matcher() MatchFunc {
	return func(text string) (string, []string) {
		if s := d.Detect(text); s != nil {
			return s.Type, s.Matches
		}
		return "", nil
	}
}
