// Package engine implements the Gate: the decision function that
// chooses between the Fast, Wasm and Headless extraction backends with
// a layered "try the cheap signal, fall through" cascade.
package engine

import (
	"time"

	"github.com/foofork/riptide/internal/model"
)

const (
	// DensityHigh and DensityLow bound the content-signal classification.
	DensityHigh = 0.12
	DensityLow  = 0.04

	// ProbeQualityThreshold is the quality score a probe-first Wasm
	// extraction must clear to avoid escalating to Headless: 60 keeps
	// it, 59 escalates.
	ProbeQualityThreshold = 60
)

// Gate is a pure decision function: probe-first escalation happens in
// the orchestrator (internal/spider), not here, so Gate.Decide never
// itself invokes an extractor -- it only classifies the fetched HTML and
// names an engine.
type Gate struct{}

func NewGate() *Gate { return &Gate{} }

// Decide implements the decision ladder, evaluated in order, first
// match wins. The returned StructuredDoc is non-nil only
// when rule 1 (JSON-LD short-circuit) fires.
func (g *Gate) Decide(fr model.FetchResult, flags model.EngineFlags) (model.EngineDecision, *StructuredDoc) {
	body := fr.Body()

	// Rule 1: JSON-LD short-circuit.
	if doc, ok := findCompleteJSONLD(body); ok {
		return model.NewEngineDecision(model.EngineFast, 1.0, "jsonld-shortcircuit"), &doc
	}

	if !flags.UseVisibleTextDensity {
		return model.NewEngineDecision(model.EngineWasm, 0.5, "density-check-disabled"), nil
	}

	density := visibleTextDensity(body)
	placeholder := flags.DetectPlaceholders && detectPlaceholder(body)

	// Rule 2: content-signal classification.
	switch {
	case density >= DensityHigh && !placeholder:
		return model.NewEngineDecision(model.EngineWasm, density, "density-high"), nil

	case density < DensityLow || placeholder:
		// Rule 3: probe-first escalation is flag-gated and lives in the
		// orchestrator. The Gate names EngineWasm as the probe
		// candidate; the orchestrator escalates to Headless itself if
		// the probe's quality falls under ProbeQualityThreshold.
		if flags.ProbeFirstSPA {
			return model.NewEngineDecision(model.EngineWasm, density, "probe-first-candidate"), nil
		}
		reason := "placeholder-detected"
		if !placeholder {
			reason = "density-low"
		}
		return model.NewEngineDecision(model.EngineHeadless, density, reason), nil
	}

	// Rule 4: otherwise.
	return model.NewEngineDecision(model.EngineWasm, density, "default"), nil
}

// DecideWithProfile wraps Decide with a domain-profile warm-start: when
// a confident baseline already exists for
// domain, the Gate trusts it instead of re-running the density/placeholder
// read on this page. A miss, an expired entry, or a low-confidence profile
// falls through to Decide unchanged, so this never narrows coverage -- it
// only ever saves a redundant read on a domain already proven consistent.
func (g *Gate) DecideWithProfile(fr model.FetchResult, flags model.EngineFlags, domain string, store *DomainProfileStore, now time.Time) (model.EngineDecision, *StructuredDoc) {
	if doc, ok := findCompleteJSONLD(fr.Body()); ok {
		return model.NewEngineDecision(model.EngineFast, 1.0, "jsonld-shortcircuit"), &doc
	}

	if store != nil && flags.UseVisibleTextDensity {
		if profile, ok := store.get(domain, now); ok && profile.Confidence >= domainProfileConfidence {
			switch {
			case profile.BaselineDensity >= DensityHigh:
				return model.NewEngineDecision(model.EngineWasm, profile.Confidence, "domain-profile-warmstart"), nil
			case profile.BaselineDensity < DensityLow:
				if flags.ProbeFirstSPA {
					return model.NewEngineDecision(model.EngineWasm, profile.Confidence, "probe-first-candidate"), nil
				}
				return model.NewEngineDecision(model.EngineHeadless, profile.Confidence, "domain-profile-warmstart"), nil
			}
		}
	}

	return g.Decide(fr, flags)
}
