package checkin

import "strings"

// PageState is what a rendered check-in page says about today's check-in
type PageState int

const (
	StateActionable PageState = iota
	StateAlreadySigned
	StateJustSigned
)

func (s PageState) String() string {
	switch s {
	case StateAlreadySigned:
		return "already_signed"
	case StateJustSigned:
		return "just_signed"
	default:
		return "actionable"
	}
}

// Status maps a page state onto a check-in status. An actionable page after
// an attempt means the attempt did not take.
func (s PageState) Status() Status {
	switch s {
	case StateAlreadySigned:
		return StatusAlreadyDone
	case StateJustSigned:
		return StatusJustCompleted
	default:
		return StatusFailed
	}
}

// Rule maps a predicate over page source to a state
type Rule struct {
	State PageState
	Match func(html string) bool
}

// Classifier evaluates rules in order; the first match wins
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier from ordered rules
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultClassifier knows the markers the sign plugin renders
func DefaultClassifier() *Classifier {
	return NewClassifier(
		Rule{State: StateAlreadySigned, Match: ContainsAny("今日已签", "您今天已经签到过了")},
		Rule{State: StateJustSigned, Match: ContainsAny("签到成功")},
	)
}

// Classify returns the state of the first matching rule, or StateActionable
func (c *Classifier) Classify(html string) PageState {
	for _, rule := range c.rules {
		if rule.Match(html) {
			return rule.State
		}
	}
	return StateActionable
}

// ContainsAny matches when the page source contains any of the markers
func ContainsAny(markers ...string) func(string) bool {
	return func(html string) bool {
		for _, m := range markers {
			if strings.Contains(html, m) {
				return true
			}
		}
		return false
	}
}
