package selector

import (
	"sort"
	"strconv"

	"github.com/dkazarov/landpick/internal/config"
)

// unsetRulePriority is how rules without an explicit priority sort:
// after everything that has one.
const unsetRulePriority = 999

// Resolve determines the final template from the collected answers, in
// strict priority order: the B2B marker beats everything, then the
// pre-order marker, then a limited offer (annotated with the base
// template), then a suggestion recorded during traversal, then the
// prioritized rule table. Resolution reads the answer set but never
// mutates it.
func (s *Session) Resolve() Result {
	scenarios := s.SpecialScenarios()

	if containsString(scenarios, ScenarioB2B) {
		return Result{Kind: KindTemplate, Template: TemplateB2B, Reason: ReasonB2B, Priority: PriorityHighest}
	}
	if containsString(scenarios, ScenarioPreOrder) {
		return Result{Kind: KindTemplate, Template: TemplatePreOrder, Reason: ReasonPreOrder, Priority: PriorityHigh}
	}
	if containsString(scenarios, ScenarioLimitedOffer) {
		if base, ok := s.baseTemplate(); ok {
			return Result{
				Kind:         KindTemplate,
				Template:     TemplateLimitedOffer,
				BaseTemplate: base,
				Reason:       ReasonLimitedOffer,
				Priority:     PriorityHigh,
			}
		}
	}
	if suggested, ok := s.answers[config.SuggestedTemplateKey].(string); ok && suggested != "" {
		return Result{Kind: KindTemplate, Template: suggested, Reason: ReasonSuggested, Priority: PriorityMedium}
	}
	return s.applyRules()
}

// applyRules evaluates the rule table in ascending priority order (the
// sort is stable: ties keep declaration order) and returns the first
// rule whose conditions all match. With no firing rule the base template
// is used, defaulting to the generic single-item template.
func (s *Session) applyRules() Result {
	src := s.eng.logic().Rules()
	rules := make([]config.Rule, len(src))
	copy(rules, src)
	sort.SliceStable(rules, func(i, j int) bool {
		return effectivePriority(rules[i]) < effectivePriority(rules[j])
	})

	for _, r := range rules {
		if s.matchRule(r.Conditions) {
			return Result{
				Kind:     KindTemplate,
				Template: r.Template,
				Reason:   r.Reason,
				Priority: rulePriorityLabel(r),
				Override: r.Override,
			}
		}
	}

	base, ok := s.baseTemplate()
	if !ok {
		base = DefaultTemplate
	}
	return Result{Kind: KindTemplate, Template: base, Reason: ReasonDefault, Priority: PriorityLow}
}

// matchRule reports whether every condition of a rule matches the
// recorded answers (logical AND).
func (s *Session) matchRule(conds map[string]config.Expectation) bool {
	for key, exp := range conds {
		answerKey := config.ConditionKey(key)
		switch exp.Kind {
		case config.ExpectExact:
			v, ok := s.answers[answerKey].(string)
			if !ok || v != exp.Exact {
				return false
			}
		case config.ExpectAnyOf:
			if answerKey == config.StepSpecialScenarios {
				// Overlap semantics: an empty expected list matches only an
				// empty (or absent) recorded list; a non-empty one needs at
				// least one common entry.
				scenarios := stringList(s.answers[config.StepSpecialScenarios])
				if len(exp.AnyOf) == 0 {
					if len(scenarios) != 0 {
						return false
					}
					continue
				}
				if !overlaps(exp.AnyOf, scenarios) {
					return false
				}
				continue
			}
			// Plain membership for every other key.
			v, ok := s.answers[answerKey].(string)
			if !ok || !containsString(exp.AnyOf, v) {
				return false
			}
		}
	}
	return true
}

// baseTemplate maps product type, business model and price tier to the
// template they imply, ignoring special scenarios. The current mapping
// always yields a template, but callers treat a missing mapping as a
// legitimate outcome.
func (s *Session) baseTemplate() (string, bool) {
	productType, _ := s.answers[config.StepProductType].(string)
	businessModel, _ := s.answers[config.StepBusinessModel].(string)
	priceRange, _ := s.answers[config.StepPriceRange].(string)

	switch productType {
	case "physical_product":
		switch businessModel {
		case "variants":
			return TemplatePhysicalMulti, true
		case "dropshipping":
			return TemplatePhysicalDropshipping, true
		}
		switch priceRange {
		case "low":
			return TemplateLowPriceImpulse, true
		case "medium":
			return TemplateMediumPriceJustified, true
		case "high":
			return TemplateHighPriceDetailed, true
		}
		return DefaultTemplate, true
	case "service":
		return TemplateServiceConsultation, true
	case "digital_product":
		return TemplateDigitalCourse, true
	}
	return DefaultTemplate, true
}

// rulePriorityLabel passes the rule's numeric priority through as a
// decimal string; rules without one carry the medium label.
func rulePriorityLabel(r config.Rule) string {
	if r.Priority == 0 {
		return PriorityMedium
	}
	return strconv.Itoa(r.Priority)
}

func effectivePriority(r config.Rule) int {
	if r.Priority == 0 {
		return unsetRulePriority
	}
	return r.Priority
}

func overlaps(expected, actual []string) bool {
	for _, e := range expected {
		if containsString(actual, e) {
			return true
		}
	}
	return false
}
