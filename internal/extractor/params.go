package extractor

import (
	"net/url"

	"github.com/foofork/riptide/pkg/failure"
)

// ExtractParam tunes the Fast engine's content-scoring heuristics
// (calculateContentScore, isMeaningful). The scoring multipliers and
// meaningfulness thresholds are carried here so callers running against
// different documentation platforms can retune them without touching
// the scoring code itself.
type ExtractParam struct {
	BodySpecificityBias  float64
	LinkDensityThreshold float64
	ScoreMultiplier      ContentScoreMultiplier
	Threshold            MeaningfulThreshold
}

// ContentScoreMultiplier weights calculateContentScore's per-signal
// contributions.
type ContentScoreMultiplier struct {
	NonWhitespaceDivisor float64
	Paragraphs           float64
	Headings             float64
	CodeBlocks           float64
	ListItems            float64
}

// MeaningfulThreshold bounds isMeaningful's accept/reject decision.
type MeaningfulThreshold struct {
	MinNonWhitespace    int
	MinHeadings         int
	MinParagraphsOrCode int
	MaxLinkDensity      float64
}

// DefaultExtractParam mirrors the constants calculateContentScore and
// isMeaningful use today (+1 per 50 non-whitespace chars, +5 per
// paragraph, +10 per heading, +15 per code block, +2 per list item).
func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		BodySpecificityBias:  1.2,
		LinkDensityThreshold: 0.5,
		ScoreMultiplier: ContentScoreMultiplier{
			NonWhitespaceDivisor: 50,
			Paragraphs:           5,
			Headings:             10,
			CodeBlocks:           15,
			ListItems:            2,
		},
		Threshold: MeaningfulThreshold{
			MinNonWhitespace:    50,
			MinHeadings:         0,
			MinParagraphsOrCode: 1,
			MaxLinkDensity:      0.8,
		},
	}
}

// Extractor is the interface the orchestrator depends on so it never
// needs to know about DomExtractor's concrete construction.
type Extractor interface {
	SetExtractParam(params ExtractParam)
	Extract(sourceUrl url.URL, htmlByte []byte) (ExtractionResult, failure.ClassifiedError)
}

// QualityScore clamps calculateContentScore's raw, unbounded signal into
// the 0-100 range the orchestrator compares against
// engine.ProbeQualityThreshold and AdaptiveStop's quality floor.
func QualityScore(result ExtractionResult, params ExtractParam) int {
	if result.ContentNode == nil {
		return 0
	}
	raw := calculateContentScore(result.ContentNode, params.ScoreMultiplier, params.LinkDensityThreshold)
	switch {
	case raw < 0:
		return 0
	case raw > 100:
		return 100
	default:
		return int(raw)
	}
}
