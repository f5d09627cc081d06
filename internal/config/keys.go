package config

// Reserved answer-set keys with fixed semantics. The first four are the
// canonical questionnaire steps; rule-condition keys alias onto them.
const (
	StepProductType      = "step_1_product_type"
	StepBusinessModel    = "step_2_business_model"
	StepPriceRange       = "step_3_price_range"
	StepSpecialScenarios = "step_4_special_scenarios"

	// SuggestedTemplateKey is written by tree traversal when a branch
	// carries a template suggestion, and read during resolution.
	SuggestedTemplateKey = "suggested_template"

	// FirstStep is where every new session starts.
	FirstStep = StepProductType
)

// ConditionKey resolves a rule-condition key to the answer-set key it
// reads. The four short aliases map onto the reserved steps; anything
// else is looked up verbatim.
func ConditionKey(key string) string {
	switch key {
	case "product_type":
		return StepProductType
	case "business_model":
		return StepBusinessModel
	case "price_range":
		return StepPriceRange
	case "special_scenarios":
		return StepSpecialScenarios
	}
	return key
}
