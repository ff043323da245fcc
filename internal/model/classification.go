package model

// Source indicates which step of the rule cascade produced a classification.
type Source string

// Classification sources, ordered by precedence.
const (
	SourceManual      Source = "manual"
	SourceExplicit    Source = "explicit-data"
	SourceHeuristic   Source = "heuristic"
	SourceTypeDefault Source = "type-default"
	SourceNone        Source = "none"
)

// Confidence scores per cascade step.
const (
	ConfidenceManual      = 1.0
	ConfidenceExplicit    = 1.0
	ConfidenceHeuristic   = 0.7
	ConfidenceTypeDefault = 0.5
	ConfidenceNone        = 0.0
)

// ClassificationRecord is the engine's verdict for one element: the leaf
// taxonomy code (empty when unclassified), its provenance, and a confidence
// score in [0,1].
type ClassificationRecord struct {
	Code       string  `json:"code,omitempty"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Unclassified is the record assigned when every cascade step falls through.
func Unclassified() ClassificationRecord {
	return ClassificationRecord{Source: SourceNone, Confidence: ConfidenceNone}
}

// Classified reports whether the record carries a leaf code.
func (c ClassificationRecord) Classified() bool {
	return c.Code != ""
}
