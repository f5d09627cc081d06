package config

import (
	"fmt"
	"strings"

	"github.com/dkazarov/landpick/internal/condition"
)

// Validate checks the selection logic for authoring defects the engine
// itself deliberately tolerates at runtime:
//   - malformed condition expressions (engine: silently false)
//   - dangling next_step references (engine: silently "tree complete")
//   - non-exhaustive conditional branches (engine: permanent stall)
//
// templateIDs, when non-empty, is the catalog's template id set; every
// template the logic references must then be present in it.
//
// All problems are collected and reported together.
func Validate(cfg *Logic, templateIDs []string) error {
	var errs []string

	if len(cfg.DecisionTree) == 0 {
		return fmt.Errorf("selection logic: decision_tree is empty")
	}
	if _, ok := cfg.DecisionTree[FirstStep]; !ok {
		errs = append(errs, fmt.Sprintf("decision_tree: first step %q is missing", FirstStep))
	}

	known := make(map[string]struct{}, len(templateIDs))
	for _, id := range templateIDs {
		known[id] = struct{}{}
	}
	checkTemplate := func(id, loc string) {
		if len(known) == 0 || id == "" {
			return
		}
		if _, ok := known[id]; !ok {
			errs = append(errs, fmt.Sprintf("%s: unknown template %q", loc, id))
		}
	}

	for stepID, step := range cfg.DecisionTree {
		if stepID == TemplateSelectionKey {
			validateRules(step.Rules, checkTemplate, &errs)
			continue
		}
		loc := fmt.Sprintf("step %s", stepID)
		switch {
		case step.Condition != nil && step.Question != "":
			errs = append(errs, fmt.Sprintf("%s: has both a question and a condition", loc))
		case step.Condition == nil && step.Question == "":
			errs = append(errs, fmt.Sprintf("%s: needs a question or a condition", loc))
		case step.Condition == nil:
			validateOptions(step.Options, loc, &errs)
		default:
			validateCondition(cfg, stepID, step.Condition, checkTemplate, &errs)
		}
	}

	for i, e := range cfg.QuickSelection.Keywords {
		if e.Template == "" {
			errs = append(errs, fmt.Sprintf("quick_selection.keywords[%d]: template id is empty", i))
			continue
		}
		checkTemplate(e.Template, fmt.Sprintf("quick_selection.keywords[%d]", i))
		if len(e.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("quick_selection.keywords: template %s has no keywords", e.Template))
		}
	}
	for id := range cfg.CompatibilityMatrix.Matrix {
		checkTemplate(id, "compatibility_matrix.matrix")
	}

	if len(errs) > 0 {
		return fmt.Errorf("selection logic validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateOptions(opts []Option, loc string, errs *[]string) {
	if len(opts) == 0 {
		*errs = append(*errs, fmt.Sprintf("%s: question has no options", loc))
		return
	}
	seen := make(map[string]struct{}, len(opts))
	for i, o := range opts {
		if o.ID == "" {
			*errs = append(*errs, fmt.Sprintf("%s.options[%d]: id is required", loc, i))
			continue
		}
		if _, dup := seen[o.ID]; dup {
			*errs = append(*errs, fmt.Sprintf("%s: duplicate option id %q", loc, o.ID))
		}
		seen[o.ID] = struct{}{}
	}
}

func validateRules(rules []Rule, checkTemplate func(id, loc string), errs *[]string) {
	if len(rules) == 0 {
		*errs = append(*errs, fmt.Sprintf("%s: rules list is empty", TemplateSelectionKey))
	}
	for i, r := range rules {
		loc := fmt.Sprintf("%s.rules[%d]", TemplateSelectionKey, i)
		if r.Template == "" {
			*errs = append(*errs, fmt.Sprintf("%s: template is required", loc))
		}
		checkTemplate(r.Template, loc)
		if r.Reason == "" {
			*errs = append(*errs, fmt.Sprintf("%s: reason is required", loc))
		}
	}
}

func validateCondition(cfg *Logic, stepID string, node *ConditionNode, checkTemplate func(id, loc string), errs *[]string) {
	loc := fmt.Sprintf("step %s", stepID)
	if node.If == "" {
		*errs = append(*errs, fmt.Sprintf("%s: condition needs an if clause", loc))
	}
	if node.Then == nil {
		*errs = append(*errs, fmt.Sprintf("%s: if clause needs a then block", loc))
	}

	type clause struct {
		raw  string
		then *Branch
	}
	clauses := []clause{{node.If, node.Then}}
	for i, el := range node.Elif {
		if el.Then == nil {
			*errs = append(*errs, fmt.Sprintf("%s.elif[%d]: then block is required", loc, i))
		}
		clauses = append(clauses, clause{el.When, el.Then})
	}

	exprs := make([]condition.Expr, 0, len(clauses))
	allParsed := true
	for _, c := range clauses {
		if c.raw == "" {
			allParsed = false
			continue
		}
		expr, err := condition.Parse(c.raw)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("%s: %v", loc, err))
			allParsed = false
			continue
		}
		exprs = append(exprs, expr)
		if c.then != nil {
			if c.then.NextStep != "" {
				if _, ok := cfg.DecisionTree[c.then.NextStep]; !ok || c.then.NextStep == TemplateSelectionKey {
					*errs = append(*errs, fmt.Sprintf("%s: next_step %q does not name a tree step", loc, c.then.NextStep))
				}
			}
			checkTemplate(c.then.TemplateSuggestion, loc)
			if c.then.Question != "" {
				validateOptions(c.then.Options, loc, errs)
			}
		}
	}

	// Exhaustiveness is provable when every clause tests the same key and
	// that key names a question step with a fixed option list: each option
	// must be covered, otherwise an answer exists that permanently stalls
	// the walker on this node.
	if !allParsed || len(exprs) == 0 {
		return
	}
	key := exprs[0].Key
	for _, e := range exprs[1:] {
		if e.Key != key {
			return
		}
	}
	target, ok := cfg.DecisionTree[key]
	if !ok || target.Question == "" || len(target.Options) == 0 {
		return
	}
	covered := make(map[string]struct{}, len(exprs))
	for _, e := range exprs {
		covered[e.Literal] = struct{}{}
	}
	for _, opt := range target.Options {
		if _, ok := covered[opt.ID]; !ok {
			*errs = append(*errs, fmt.Sprintf("%s: branches over %q do not cover option %q (non-exhaustive conditional stalls the questionnaire)", loc, key, opt.ID))
		}
	}
}
