package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TemplateSelectionKey is the reserved decision-tree entry that holds the
// prioritized selection rules instead of a question.
const TemplateSelectionKey = "template_selection"

// Logic is the top-level selection-logic structure.
type Logic struct {
	Version             string              `yaml:"version"`
	DecisionTree        map[string]Step     `yaml:"decision_tree"`
	QuickSelection      QuickSelection      `yaml:"quick_selection"`
	CompatibilityMatrix CompatibilityMatrix `yaml:"compatibility_matrix"`
}

// Rules returns the prioritized rule list stored under the reserved
// template_selection entry. A missing entry yields an empty list.
func (l *Logic) Rules() []Rule {
	return l.DecisionTree[TemplateSelectionKey].Rules
}

// Step is one decision-tree node. Exactly one of the three shapes is
// populated: a direct question (Question+Options), a conditional node
// (Condition), or the reserved rule container (Rules).
type Step struct {
	Question  string         `yaml:"question"`
	Options   []Option       `yaml:"options"`
	Condition *ConditionNode `yaml:"condition"`
	Rules     []Rule         `yaml:"rules"`
}

// Option is one selectable answer for a question.
type Option struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// ConditionNode is an if/elif chain. Clauses are evaluated in listed
// order and the first true condition wins.
type ConditionNode struct {
	If   string       `yaml:"if"`
	Then *Branch      `yaml:"then"`
	Elif []ElifClause `yaml:"elif"`
}

// ElifClause pairs a condition string with its then-block.
type ElifClause struct {
	When string  `yaml:"when"`
	Then *Branch `yaml:"then"`
}

// Branch is the then-block of a conditional clause: the next question to
// ask, plus an optional jump target and an optional template suggestion
// recorded into the session.
type Branch struct {
	Question           string   `yaml:"question"`
	Options            []Option `yaml:"options"`
	NextStep           string   `yaml:"next_step"`
	TemplateSuggestion string   `yaml:"template_suggestion"`
}

// Rule is one prioritized selection rule. Lower priority values are
// evaluated first; zero means unset and sorts last.
type Rule struct {
	Priority   int                    `yaml:"priority" json:"priority"`
	Conditions map[string]Expectation `yaml:"conditions" json:"conditions"`
	Template   string                 `yaml:"template" json:"template"`
	Reason     string                 `yaml:"reason" json:"reason"`
	Override   bool                   `yaml:"override" json:"override,omitempty"`
}

// ExpectKind discriminates the two rule-condition shapes.
type ExpectKind int

const (
	// ExpectExact matches on exact equality with the recorded answer.
	ExpectExact ExpectKind = iota
	// ExpectAnyOf matches on membership (or, for the special-scenario
	// key, overlap) with the recorded answer.
	ExpectAnyOf
)

// Expectation is a tagged rule-condition value: either a single literal
// or a list of accepted values.
type Expectation struct {
	Kind  ExpectKind
	Exact string
	AnyOf []string
}

// UnmarshalYAML accepts a scalar (exact match) or a sequence (any-of).
func (e *Expectation) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		e.Kind = ExpectExact
		return n.Decode(&e.Exact)
	case yaml.SequenceNode:
		e.Kind = ExpectAnyOf
		e.AnyOf = []string{} // distinguish an empty list from a scalar
		return n.Decode(&e.AnyOf)
	default:
		return fmt.Errorf("rule condition: expected scalar or sequence, got %v", n.Kind)
	}
}

// MarshalYAML renders the expectation back in its source shape.
func (e Expectation) MarshalYAML() (any, error) {
	if e.Kind == ExpectAnyOf {
		return e.AnyOf, nil
	}
	return e.Exact, nil
}

// QuickSelection holds the keyword fast-path table.
type QuickSelection struct {
	Keywords KeywordTable `yaml:"keywords"`
}

// KeywordEntry maps one template to its trigger keywords.
type KeywordEntry struct {
	Template string
	Keywords []string
}

// KeywordTable preserves the document order of the keyword mapping: the
// first entry with a matching keyword wins, so iteration order is part
// of the contract.
type KeywordTable []KeywordEntry

// UnmarshalYAML decodes a YAML mapping into an ordered entry list.
func (t *KeywordTable) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("quick_selection.keywords: expected mapping, got %v", n.Kind)
	}
	entries := make(KeywordTable, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		var e KeywordEntry
		if err := n.Content[i].Decode(&e.Template); err != nil {
			return err
		}
		if err := n.Content[i+1].Decode(&e.Keywords); err != nil {
			return err
		}
		entries = append(entries, e)
	}
	*t = entries
	return nil
}

// CompatibilityMatrix declares which special scenarios are disallowed
// for a given base template. Templates absent from the matrix have no
// known incompatibilities.
type CompatibilityMatrix struct {
	Matrix map[string]CompatEntry `yaml:"matrix"`
}

// CompatEntry lists the scenarios a template cannot be combined with.
type CompatEntry struct {
	NotCompatibleWith []string `yaml:"not_compatible_with"`
}
