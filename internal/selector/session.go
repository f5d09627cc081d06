package selector

import (
	"github.com/dkazarov/landpick/internal/condition"
	"github.com/dkazarov/landpick/internal/config"
)

// Session is the mutable per-conversation state: the collected answers
// and the current decision-tree position. A Session is owned by exactly
// one conversation and is not safe for concurrent use; callers sequence
// access externally.
type Session struct {
	eng     *Engine
	answers map[string]any
	current string
}

// NewSession starts a fresh questionnaire at the first step.
func (e *Engine) NewSession() *Session {
	return &Session{
		eng:     e,
		answers: make(map[string]any),
		current: config.FirstStep,
	}
}

// Answer implements condition.Answers over the collected answer set.
func (s *Session) Answer(key string) (any, bool) {
	v, ok := s.answers[key]
	return v, ok
}

// CurrentStep returns the identifier of the node evaluated next.
func (s *Session) CurrentStep() string {
	return s.current
}

// SpecialScenarios returns the recorded special-scenario list, empty
// when none were recorded.
func (s *Session) SpecialScenarios() []string {
	return stringList(s.answers[config.StepSpecialScenarios])
}

// RecordAnswer stores answer under stepID, overwriting any prior value,
// and advances. The answer's shape is not validated; it is opaque to
// everything except equality and list membership.
func (s *Session) RecordAnswer(stepID string, answer any) Result {
	s.answers[stepID] = answer
	return s.Advance()
}

// Advance evaluates the decision-tree node named by the current step
// pointer and returns the next question, or the final selection once the
// tree is exhausted. With no intervening RecordAnswer it is idempotent.
func (s *Session) Advance() Result {
	step, ok := s.eng.logic().DecisionTree[s.current]
	if !ok {
		// Tree exhausted (or a dangling next_step): resolve now.
		return s.Resolve()
	}
	if step.Condition == nil {
		if step.Question == "" {
			// The rule container, or an empty node. Nothing to ask.
			return s.Resolve()
		}
		return Result{Kind: KindQuestion, Prompt: step.Question, Options: step.Options, StepID: s.current}
	}

	branch := s.matchBranch(step.Condition)
	if branch == nil {
		// No clause matched: the answer this node branches on is missing or
		// out of range. The pointer stays put, the caller is told which step
		// still needs an answer, and the next call re-evaluates this node.
		// config.Validate flags trees where a listed option can stall here.
		return Result{Kind: KindQuestion, StepID: s.current}
	}
	if branch.NextStep != "" {
		s.current = branch.NextStep
	}
	if branch.TemplateSuggestion != "" {
		s.answers[config.SuggestedTemplateKey] = branch.TemplateSuggestion
	}
	return Result{Kind: KindQuestion, Prompt: branch.Question, Options: branch.Options, StepID: s.current}
}

// matchBranch returns the then-block of the first clause whose condition
// holds: if first, then each elif in listed order.
func (s *Session) matchBranch(node *config.ConditionNode) *config.Branch {
	if node.Then != nil && condition.Holds(node.If, s) {
		return node.Then
	}
	for _, el := range node.Elif {
		if el.Then != nil && condition.Holds(el.When, s) {
			return el.Then
		}
	}
	return nil
}

// Reset clears the answer set and returns the step pointer to the first
// step.
func (s *Session) Reset() {
	s.answers = make(map[string]any)
	s.current = config.FirstStep
}

// stringList coerces a recorded answer to a string list: lists pass
// through (dropping non-string members), a bare string becomes a
// singleton, anything else is empty.
func stringList(v any) []string {
	switch l := v.(type) {
	case nil:
		return nil
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{l}
	}
	return nil
}
