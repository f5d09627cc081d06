// Package fields implements the field-collection collaborator: given a
// chosen template it supplies the ordered required fields, the prompt
// for each, per-field validation, and the final formatting pass over the
// collected answers. The selection engine neither knows about nor
// constrains this phase.
package fields

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dkazarov/landpick/internal/catalog"
)

// Collector answers field-collection queries against the catalog.
type Collector struct {
	catalog *catalog.Catalog
}

// NewCollector creates a Collector over the given catalog.
func NewCollector(cat *catalog.Catalog) *Collector {
	return &Collector{catalog: cat}
}

// RequiredFields returns the ordered field set for a template, empty for
// unknown templates.
func (c *Collector) RequiredFields(templateID string) catalog.FieldList {
	t, ok := c.catalog.Get(templateID)
	if !ok {
		return nil
	}
	return t.RequiredFields
}

// NextField returns the first required field not yet present in
// collected, or false when every field is filled.
func (c *Collector) NextField(templateID string, collected map[string]any) (string, bool) {
	for _, f := range c.RequiredFields(templateID) {
		if _, ok := collected[f.ID]; !ok {
			return f.ID, true
		}
	}
	return "", false
}

var fieldQuestions = map[string]string{
	"product_name":        "What is the product called?",
	"product_description": "Describe the product in detail. What are its main advantages?",
	"old_price":           "What was the price before the discount? (for example: 152 BYN)",
	"new_price":           "What is the discounted price? (for example: 99 BYN)",
	"discount_percent":    "How big is the discount in percent? (for example: 35)",
	"product_images":      "Send product photos (at least 4). Several messages are fine.",
	"features":            "What are the key features? (one per line)",
	"benefits":            "What are the benefits? (for example: memory foam, anatomic shape)",
	"reviews":             "Are there reviews? (send photos or plain text)",
	"delivery_info":       "Delivery details? (for example: nationwide delivery)",
	"payment_info":        "Payment details? (for example: payment on delivery)",
	"warranty_info":       "Warranty? (for example: 30-day money-back guarantee)",
}

// Question returns the prompt to ask for a field.
func (c *Collector) Question(fieldID string) string {
	if q, ok := fieldQuestions[fieldID]; ok {
		return q
	}
	return fmt.Sprintf("Enter a value for field: %s", fieldID)
}

// ValidateField checks one collected value. A nil error means the value
// is acceptable.
func (c *Collector) ValidateField(templateID, fieldID string, value any) error {
	fieldType := "string"
	for _, f := range c.RequiredFields(templateID) {
		if f.ID == fieldID {
			fieldType = f.Type
			break
		}
	}

	s, isString := value.(string)
	if value == nil || (isString && strings.TrimSpace(s) == "") {
		return fmt.Errorf("field %s must not be empty", fieldID)
	}

	if fieldType == "number" {
		if _, err := parseAmount(fmt.Sprintf("%v", value)); err != nil {
			return fmt.Errorf("field %s must be a number", fieldID)
		}
	}

	if fieldID == "phone" && isString && !strings.HasPrefix(s, "+375") {
		return fmt.Errorf("phone number must start with +375")
	}
	return nil
}

// FormatCollected returns a formatted copy of the collected data: prices
// trimmed, newline-separated lists split, and discount_percent computed
// from old_price and new_price when both parse.
func (c *Collector) FormatCollected(templateID string, collected map[string]any) map[string]any {
	_ = templateID
	formatted := make(map[string]any, len(collected)+1)
	for k, v := range collected {
		formatted[k] = v
	}

	for _, key := range []string{"old_price", "new_price", "price"} {
		if s, ok := formatted[key].(string); ok {
			formatted[key] = strings.TrimSpace(s)
		}
	}

	if dp, ok := DiscountPercent(formatted["old_price"], formatted["new_price"]); ok {
		formatted["discount_percent"] = dp
	}

	for _, key := range []string{"features", "benefits"} {
		if s, ok := formatted[key].(string); ok {
			var items []string
			for _, line := range strings.Split(s, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					items = append(items, line)
				}
			}
			formatted[key] = items
		}
	}

	return formatted
}

// DiscountPercent computes the integer discount from an old and a new
// price. The second return is false when either price does not parse or
// the old price is zero.
func DiscountPercent(oldPrice, newPrice any) (int, bool) {
	if oldPrice == nil || newPrice == nil {
		return 0, false
	}
	oldV, err := parseAmount(fmt.Sprintf("%v", oldPrice))
	if err != nil || oldV == 0 {
		return 0, false
	}
	newV, err := parseAmount(fmt.Sprintf("%v", newPrice))
	if err != nil {
		return 0, false
	}
	return int(((oldV - newV) / oldV) * 100), true
}

// parseAmount extracts the numeric value from a price string such as
// "152 BYN" or "99".
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for _, cur := range []string{"BYN", "BYR", "RUB", "USD", "EUR"} {
		s = strings.ReplaceAll(s, cur, "")
		s = strings.ReplaceAll(s, strings.ToLower(cur), "")
	}
	s = strings.TrimSpace(s)
	return strconv.ParseFloat(s, 64)
}
