package engine

// PolicyConfig represents per-client category configuration.
// Loaded from the clients table's policy JSONB column.
type PolicyConfig struct {
	Categories map[string]CategoryPolicy `json:"categories"`
}

// GetCategoryPolicy returns the policy for a category tag.
// If the PolicyConfig is nil or the category is missing, returns
// a zero-value CategoryPolicy (all nil fields → server defaults).
func (pc *PolicyConfig) GetCategoryPolicy(tag string) CategoryPolicy {
	if pc == nil || pc.Categories == nil {
		return CategoryPolicy{}
	}
	return pc.Categories[tag]
}

// CategoryPolicy controls how one category contributes to the verdict.
// All pointer fields use nil to mean "use server default".
// It never changes the engine's Result, only the Decision built from it.
type CategoryPolicy struct {
	Enabled        *bool    `json:"enabled"`         // nil = use server default (true)
	BlockThreshold *float64 `json:"block_threshold"` // nil = use server default (0.8)
	FlagThreshold  *float64 `json:"flag_threshold"`  // nil = use server default (0.0)
}

// IsEnabled returns whether the category counts towards the verdict.
// A nil Enabled field defaults to true.
func (cp CategoryPolicy) IsEnabled() bool {
	if cp.Enabled == nil {
		return true
	}
	return *cp.Enabled
}

// EffectiveBlockThreshold returns the block threshold for this category.
func (cp CategoryPolicy) EffectiveBlockThreshold(serverDefault float64) float64 {
	if cp.BlockThreshold == nil {
		return serverDefault
	}
	return *cp.BlockThreshold
}

// EffectiveFlagThreshold returns the flag threshold for this category.
func (cp CategoryPolicy) EffectiveFlagThreshold(serverDefault float64) float64 {
	if cp.FlagThreshold == nil {
		return serverDefault
	}
	return *cp.FlagThreshold
}
