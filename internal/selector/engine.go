// Package selector implements the template selection engine: a small
// interpreter over a decision tree of questions and a table of
// prioritized selection rules that deterministically picks one template
// id from the catalog for an evolving set of collected answers.
package selector

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dkazarov/landpick/internal/catalog"
	"github.com/dkazarov/landpick/internal/config"
)

// Engine holds the shared, read-only configuration pair. One Engine is
// shared by many independent Sessions; the logic pointer is swapped
// atomically on hot reload.
type Engine struct {
	logicPtr atomic.Pointer[config.Logic]
	catalog  *catalog.Catalog
}

// New creates an Engine over the given configuration pair.
func New(logic *config.Logic, cat *catalog.Catalog) *Engine {
	e := &Engine{catalog: cat}
	e.logicPtr.Store(logic)
	return e
}

// SwapLogic atomically replaces the selection logic (used on hot-reload).
// Sessions in flight pick up the new logic on their next call.
func (e *Engine) SwapLogic(l *config.Logic) {
	e.logicPtr.Store(l)
}

func (e *Engine) logic() *config.Logic {
	return e.logicPtr.Load()
}

// Catalog returns the template catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// QuickSelect scans free text for any keyword of any catalog template,
// case-insensitively and substring-based. The first table entry with a
// hit wins; table order breaks ties. It never consults the decision tree
// or any session state. The second return is false when nothing matches.
func (e *Engine) QuickSelect(text string) (Result, bool) {
	lower := strings.ToLower(text)
	for _, entry := range e.logic().QuickSelection.Keywords {
		for _, kw := range entry.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				return Result{
					Kind:       KindTemplate,
					Template:   entry.Template,
					Reason:     ReasonKeyword,
					Confidence: ConfidenceMedium,
				}, true
			}
		}
	}
	return Result{}, false
}

// CheckCompatibility reports whether base can be combined with the given
// special scenarios. Templates absent from the matrix have no known
// incompatibilities.
func (e *Engine) CheckCompatibility(base string, scenarios []string) CompatReport {
	entry, ok := e.logic().CompatibilityMatrix.Matrix[base]
	if !ok {
		return CompatReport{Compatible: true, Warnings: []string{}}
	}
	warnings := []string{}
	for _, sc := range scenarios {
		if containsString(entry.NotCompatibleWith, sc) {
			warnings = append(warnings, fmt.Sprintf("template %s is not compatible with %s", base, sc))
		}
	}
	return CompatReport{Compatible: len(warnings) == 0, Warnings: warnings}
}

// RecommendedModifications returns the template adjustments implied by
// the given scenarios. templateID does not vary the output yet; it is
// accepted so per-template variants can be added without an API change.
func (e *Engine) RecommendedModifications(templateID string, scenarios []string) []Modification {
	_ = templateID
	var mods []Modification
	if containsString(scenarios, ScenarioSeasonal) {
		mods = append(mods, Modification{
			Type:        "design",
			Description: "Use a seasonal colour scheme",
			Items:       []string{"color_scheme", "seasonal_imagery", "lifestyle_photos"},
		})
	}
	if containsString(scenarios, ScenarioLimitedOffer) {
		mods = append(mods, Modification{
			Type:        "urgency",
			Description: "Add urgency elements",
			Items:       []string{"countdown_timer", "stock_counter", "purchase_counter"},
		})
	}
	return mods
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
