package extractor

import (
	"net/url"

	"github.com/llmstxt-forge/forge/pkg/failure"
)

// ContentScoreMultiplier tunes calculateContentScore's per-feature weights.
type ContentScoreMultiplier struct {
	NonWhitespaceDivisor float64
	Paragraphs           float64
	Headings             float64
	CodeBlocks           float64
	ListItems            float64
}

// MeaningfulThreshold gates isMeaningful's accept/reject decision.
type MeaningfulThreshold struct {
	MinNonWhitespace    int
	MinHeadings         int
	MinParagraphsOrCode int
	MaxLinkDensity      float64
}

// ExtractParam is the DomExtractor tuning surface, supplied by the caller
// through NewDomExtractor or SetExtractParam (DomExtractor itself never
// reads config directly).
type ExtractParam struct {
	BodySpecificityBias  float64
	LinkDensityThreshold float64
	ScoreMultiplier      ContentScoreMultiplier
	Threshold            MeaningfulThreshold
}

// defaultContentScoreMultiplier mirrors the weights calculateContentScore
// used before it read from ExtractParam.
var defaultContentScoreMultiplier = ContentScoreMultiplier{
	NonWhitespaceDivisor: 50.0,
	Paragraphs:           5.0,
	Headings:             10.0,
	CodeBlocks:           15.0,
	ListItems:            2.0,
}

// defaultMeaningfulThreshold mirrors isMeaningful's original hardcoded values.
var defaultMeaningfulThreshold = MeaningfulThreshold{
	MinNonWhitespace:    50,
	MinHeadings:         0,
	MinParagraphsOrCode: 1,
	MaxLinkDensity:      0.8,
}

// DefaultExtractParam returns the tuning values withDefaults fills in for
// any knob a caller leaves at its zero value.
func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		BodySpecificityBias:  0.75,
		LinkDensityThreshold: 0.80,
		ScoreMultiplier:      defaultContentScoreMultiplier,
		Threshold:            defaultMeaningfulThreshold,
	}
}

// withDefaults fills in zero-valued knobs so a caller that only sets a
// subset of fields still gets sane scoring behavior instead of a content
// scorer that always returns zero.
func (p ExtractParam) withDefaults() ExtractParam {
	d := DefaultExtractParam()
	if p.ScoreMultiplier == (ContentScoreMultiplier{}) {
		p.ScoreMultiplier = d.ScoreMultiplier
	}
	if p.Threshold == (MeaningfulThreshold{}) {
		p.Threshold = d.Threshold
	}
	if p.LinkDensityThreshold == 0 {
		p.LinkDensityThreshold = d.LinkDensityThreshold
	}
	if p.BodySpecificityBias == 0 {
		p.BodySpecificityBias = d.BodySpecificityBias
	}
	return p
}

// Extractor is the content-extraction port the scheduler/crawler depends on.
// DomExtractor is the production implementation.
type Extractor interface {
	Extract(sourceUrl url.URL, htmlByte []byte) (ExtractionResult, failure.ClassifiedError)
	SetExtractParam(params ExtractParam)
}
