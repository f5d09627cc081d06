package selector

import "github.com/dkazarov/landpick/internal/config"

// Kind discriminates the two result shapes.
type Kind string

const (
	// KindQuestion marks an in-progress questionnaire step.
	KindQuestion Kind = "question"
	// KindTemplate marks a final template selection.
	KindTemplate Kind = "template"
)

// Priority labels carried by the fixed resolution paths. Rule-table hits
// carry the rule's own numeric priority rendered as a decimal string.
const (
	PriorityHighest = "highest"
	PriorityHigh    = "high"
	PriorityMedium  = "medium"
	PriorityLow     = "low"
)

// ConfidenceMedium tags keyword-match selections.
const ConfidenceMedium = "medium"

// Special-scenario markers recorded under the reserved scenarios key.
const (
	ScenarioB2B          = "b2b"
	ScenarioPreOrder     = "pre_order"
	ScenarioLimitedOffer = "limited_offer"
	ScenarioSeasonal     = "seasonal"
)

// Catalog template ids the resolution ladder and base-template mapping
// refer to directly.
const (
	TemplateB2B                  = "b2b"
	TemplatePreOrder             = "pre_order"
	TemplateLimitedOffer         = "limited_offer"
	TemplatePhysicalMulti        = "physical_multi"
	TemplatePhysicalDropshipping = "physical_dropshipping"
	TemplateLowPriceImpulse      = "low_price_impulse"
	TemplateMediumPriceJustified = "medium_price_justified"
	TemplateHighPriceDetailed    = "high_price_detailed"
	TemplateServiceConsultation  = "service_consultation"
	TemplateDigitalCourse        = "digital_course"

	// DefaultTemplate is the generic single-item fallback.
	DefaultTemplate = "physical_single"
)

// Fixed reason strings for the non-rule resolution paths.
const (
	ReasonB2B          = "B2B sales require a dedicated template"
	ReasonPreOrder     = "Pre-orders require a dedicated template"
	ReasonLimitedOffer = "Limited offer with urgency elements"
	ReasonSuggested    = "Template determined by product type"
	ReasonDefault      = "Default base template used"
	ReasonKeyword      = "Matched by keyword"
)

// Result is either the next question to ask or the final selection.
type Result struct {
	Kind Kind `json:"kind"`

	// Question fields.
	Prompt  string          `json:"prompt,omitempty"`
	Options []config.Option `json:"options,omitempty"`
	StepID  string          `json:"step_id,omitempty"`

	// Template fields.
	Template     string `json:"template,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Priority     string `json:"priority,omitempty"`
	Confidence   string `json:"confidence,omitempty"`
	BaseTemplate string `json:"base_template,omitempty"`
	Override     bool   `json:"override,omitempty"`
}

// CompatReport is the outcome of a compatibility check.
type CompatReport struct {
	Compatible bool     `json:"compatible"`
	Warnings   []string `json:"warnings"`
}

// Modification is one recommended template adjustment for a scenario.
type Modification struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Items       []string `json:"items"`
}
