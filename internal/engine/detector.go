package engine

// Detector is the interface every category check implements.
// Detect must be pure: it may read shared data but never mutate it.
type Detector interface {
	// Name returns the detector's unique identifier (e.g., "lexicon").
	Name() string

	// Category returns the moderation category this detector scores.
	Category() Category

	// Detect runs the check against one normalized text.
	Detect(req *DetectRequest) *DetectResult
}

// DetectRequest carries both forms of the text a check may need.
type DetectRequest struct {
	Text  string // normalized, case preserved
	Lower string // lowercased Text

	lexicon []lexiconEntry
}

// DetectResult is the outcome of a single detector run.
type DetectResult struct {
	Triggered bool
	Score     float64 // 0.0 – 1.0, already clamped
	Matches   int
	Details   []string
}

// DetectorResult is a DetectResult tagged with the detector that produced it.
type DetectorResult struct {
	Detector string
	Category Category
	DetectResult
}
