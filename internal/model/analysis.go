package model

import "encoding/json"

// AnalysisKind tells which variant an Analysis holds.
type AnalysisKind int

const (
	// AnalysisNone means no analysis is available.
	AnalysisNone AnalysisKind = iota
	// AnalysisKeywordDiff means the analyzer returned structured keyword hints.
	AnalysisKeywordDiff
	// AnalysisFreeform means the analyzer returned plain text.
	AnalysisFreeform
)

// KeywordDiff is the structured form of an analyzer answer.
type KeywordDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Summary string   `json:"summary,omitempty"`
}

// Analysis is the result of the content analyzer: either a KeywordDiff or
// freeform text. Classification never reads it; it is stored for humans.
type Analysis struct {
	kind AnalysisKind
	diff KeywordDiff
	text string
}

// NewKeywordDiffAnalysis returns an Analysis holding structured hints.
func NewKeywordDiffAnalysis(diff KeywordDiff) Analysis {
	return Analysis{kind: AnalysisKeywordDiff, diff: diff}
}

// NewFreeformAnalysis returns an Analysis holding plain text.
// Empty text yields an empty Analysis.
func NewFreeformAnalysis(text string) Analysis {
	if text == "" {
		return Analysis{}
	}
	return Analysis{kind: AnalysisFreeform, text: text}
}

// Kind returns which variant the analysis holds.
func (a Analysis) Kind() AnalysisKind {
	return a.kind
}

// KeywordDiff returns the structured hints, if present.
func (a Analysis) KeywordDiff() (KeywordDiff, bool) {
	return a.diff, a.kind == AnalysisKeywordDiff
}

// Freeform returns the plain text, if present.
func (a Analysis) Freeform() (string, bool) {
	return a.text, a.kind == AnalysisFreeform
}

// IsEmpty reports whether no analysis is available.
func (a Analysis) IsEmpty() bool {
	return a.kind == AnalysisNone
}

// Text renders the analysis for storage: JSON for keyword diffs, the text itself otherwise.
func (a Analysis) Text() string {
	switch a.kind {
	case AnalysisKeywordDiff:
		b, err := json.Marshal(a.diff)
		if err != nil {
			return ""
		}
		return string(b)
	case AnalysisFreeform:
		return a.text
	default:
		return ""
	}
}
