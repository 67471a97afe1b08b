// Package classify assigns incoming message bodies to one of a fixed set
// of categories by case-insensitive keyword matching.
package classify

import (
	"strings"

	"github.com/nhle/mailbot/internal/model"
)

// Category is the classification outcome for a message body.
type Category string

const (
	CategorySensitive   Category = "sensitive"
	CategoryOrderStatus Category = "order-status"
	CategoryFAQ         Category = "faq"
	CategoryThankYou    Category = "thank-you"
	CategoryGeneral     Category = "general"
)

// Result holds the classified category and, for sensitive bodies, the
// exact set of configured keywords that matched.
type Result struct {
	Category Category
	Matched  []string
}

// rule pairs a category with its match predicate. Rules are evaluated in
// slice order, stopping at the first match, which makes the precedence
// between categories explicit rather than incidental.
type rule struct {
	category Category
	match    func(body string) []string
}

// Classifier classifies message bodies against configured keyword sets.
// It is pure and safe for concurrent use.
type Classifier struct {
	rules []rule
}

// New creates a Classifier from the configured keyword sets. Precedence is
// fixed here regardless of how the sets are ordered in configuration:
// sensitive always wins, then order-status, faq, thank-you; anything else
// is general.
func New(kw model.KeywordConfig) *Classifier {
	return &Classifier{
		rules: []rule{
			{CategorySensitive, matchAll(kw.Sensitive)},
			{CategoryOrderStatus, matchFirst(kw.OrderStatus)},
			{CategoryFAQ, matchFirst(kw.FAQ)},
			{CategoryThankYou, matchFirst(kw.ThankYou)},
		},
	}
}

// Classify returns the category for body. The matched keyword set is
// populated only for sensitive bodies, where it lists every configured
// sensitive keyword present. Sensitive evaluation runs first and
// short-circuits, so a body containing both an order-status keyword and a
// cancellation term never classifies as order-status.
func (c *Classifier) Classify(body string) Result {
	lower := strings.ToLower(body)

	for _, r := range c.rules {
		matched := r.match(lower)
		if len(matched) == 0 {
			continue
		}
		if r.category != CategorySensitive {
			matched = nil
		}
		return Result{Category: r.category, Matched: matched}
	}

	return Result{Category: CategoryGeneral}
}

// matchAll returns every keyword present in the body.
func matchAll(keywords []string) func(string) []string {
	return func(body string) []string {
		var matched []string
		for _, kw := range keywords {
			if kw != "" && strings.Contains(body, strings.ToLower(kw)) {
				matched = append(matched, kw)
			}
		}
		return matched
	}
}

// matchFirst stops at the first keyword present in the body.
func matchFirst(keywords []string) func(string) []string {
	return func(body string) []string {
		for _, kw := range keywords {
			if kw != "" && strings.Contains(body, strings.ToLower(kw)) {
				return []string{kw}
			}
		}
		return nil
	}
}
