package router

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

// Listener restricts a Rule to requests arriving on a given dialect
// surface; empty matches either.
type Listener string

const (
	ListenerAny       Listener = ""
	ListenerOpenAI    Listener = "openai"
	ListenerAnthropic Listener = "anthropic"
)

// StrategyKind selects how Rule.Targets picks among a rule's Primaries
// when more than one primary candidate is eligible. The spec's base
// case is a single primary plus an ordered fallback list; these
// strategies apply when a rule's Primary names a weighted/rotated pool
// instead of one provider (§4.3).
type StrategyKind string

const (
	StrategyNone               StrategyKind = ""
	StrategyRoundRobin         StrategyKind = "round_robin"
	StrategyWeightedRoundRobin StrategyKind = "weighted_round_robin"
)

// Rule is one entry of the routing rule table.
type Rule struct {
	Name     string
	// ModelPattern, if non-empty, must match the request's model field.
	ModelPattern string
	Listener     Listener
	// Primaries is the candidate pool a Strategy rotates across. A rule
	// with a single primary and no strategy always picks Primaries[0].
	Primaries []string
	Fallbacks []string
	Strategy  StrategyKind
	Weights   []int // parallel to Primaries, used by StrategyWeightedRoundRobin

	modelRe *regexp.Regexp
	cursor  atomic.Uint64 // round-robin position
}

// compile compiles ModelPattern once. Called by NewRuleTable.
func (r *Rule) compile() error {
	if r.ModelPattern == "" {
		return nil
	}
	re, err := regexp.Compile(r.ModelPattern)
	if err != nil {
		return fmt.Errorf("rule %q: invalid model_pattern: %w", r.Name, err)
	}
	r.modelRe = re
	return nil
}

func (r *Rule) matches(model string, listener Listener) bool {
	if r.Listener != ListenerAny && listener != ListenerAny && r.Listener != listener {
		return false
	}
	if r.modelRe == nil {
		return true
	}
	return r.modelRe.MatchString(model)
}

// next picks the primary provider for this dispatch, rotating per
// Strategy. Declaration-order-stable for StrategyNone.
func (r *Rule) next() string {
	if len(r.Primaries) == 0 {
		return ""
	}
	if len(r.Primaries) == 1 || r.Strategy == StrategyNone {
		return r.Primaries[0]
	}

	switch r.Strategy {
	case StrategyWeightedRoundRobin:
		return r.nextWeighted()
	default: // StrategyRoundRobin
		i := r.cursor.Add(1) - 1
		return r.Primaries[i%uint64(len(r.Primaries))]
	}
}

// nextWeighted walks the weighted pool using the same monotonic cursor
// as plain round robin, expanding each provider's share of the rotation
// to match its weight. This is stdlib-only: no library in the example
// corpus implements weighted selection, so it is built directly on
// sync/atomic the way the rest of the breaker/registry state is.
func (r *Rule) nextWeighted() string {
	total := 0
	for _, w := range r.Weights {
		if w <= 0 {
			w = 1
		}
		total += w
	}
	if total == 0 {
		return r.Primaries[0]
	}

	i := int(r.cursor.Add(1)-1) % total
	for idx, w := range r.Weights {
		if w <= 0 {
			w = 1
		}
		if i < w {
			return r.Primaries[idx]
		}
		i -= w
	}
	return r.Primaries[len(r.Primaries)-1]
}

// RuleTable holds the compiled, ordered rule set. Rules are evaluated in
// declaration order; the first match wins (§4.3).
type RuleTable struct {
	rules []*Rule
}

// NewRuleTable compiles rules in order, failing fast on an invalid regex.
func NewRuleTable(rules []*Rule) (*RuleTable, error) {
	for _, r := range rules {
		if err := r.compile(); err != nil {
			return nil, err
		}
	}
	return &RuleTable{rules: rules}, nil
}

// Match returns the first rule whose filters accept (model, listener),
// or nil if none match.
func (t *RuleTable) Match(model string, listener Listener) *Rule {
	for _, r := range t.rules {
		if r.matches(model, listener) {
			return r
		}
	}
	return nil
}

// Targets returns the ordered provider sequence (primary then
// fallbacks) a dispatch should attempt for this rule.
func (r *Rule) Targets() []string {
	out := make([]string, 0, 1+len(r.Fallbacks))
	if p := r.next(); p != "" {
		out = append(out, p)
	}
	out = append(out, r.Fallbacks...)
	return out
}
