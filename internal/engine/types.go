package engine

// Category is one of the fixed moderation tags a text can be flagged under.
// The declaration order is the evaluation order.
type Category int

const (
	CategoryUnspecified   Category = iota
	CategoryProfanity              // profanity
	CategoryThreats                // threats
	CategorySpam                   // spam
	CategoryExcessiveCaps          // excessive_caps
	CategorySpamChars              // spam_chars
)

// Categories lists every category in evaluation order.
var Categories = []Category{
	CategoryProfanity,
	CategoryThreats,
	CategorySpam,
	CategoryExcessiveCaps,
	CategorySpamChars,
}

// String returns the wire tag used in flagged_categories.
func (c Category) String() string {
	switch c {
	case CategoryProfanity:
		return "profanity"
	case CategoryThreats:
		return "threats"
	case CategorySpam:
		return "spam"
	case CategoryExcessiveCaps:
		return "excessive_caps"
	case CategorySpamChars:
		return "spam_chars"
	default:
		return "unspecified"
	}
}

// ParseCategory maps a wire tag back to its Category.
func ParseCategory(tag string) (Category, bool) {
	for _, c := range Categories {
		if c.String() == tag {
			return c, true
		}
	}
	return CategoryUnspecified, false
}

// Verdict represents the enforcement decision derived from a Result.
type Verdict int

const (
	VerdictAllow Verdict = iota + 1
	VerdictBlock
	VerdictFlag
)

// String returns the lowercase verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictBlock:
		return "block"
	case VerdictFlag:
		return "flag"
	default:
		return "unspecified"
	}
}

// Result is the outcome of scoring one text.
//
// IsAppropriate is true iff FlaggedCategories is empty, and ConfidenceScore
// is 0 in that case.
type Result struct {
	IsAppropriate     bool     `json:"is_appropriate"`
	ConfidenceScore   float64  `json:"confidence_score"`
	FlaggedCategories []string `json:"flagged_categories"`
	ProcessedText     string   `json:"processed_text"`

	// Scores holds the per-category score of every flagged category.
	Scores map[Category]float64 `json:"-"`
}

// Flagged reports whether the result carries the given category.
func (r *Result) Flagged(c Category) bool {
	_, ok := r.Scores[c]
	return ok
}
