// Package targeting evaluates include/exclude rule sets against a snapshot of
// page-context dimensions. Evaluation is deterministic and has no observable
// side effects beyond invoking user-supplied special predicates, which are
// always run inside an error boundary.
package targeting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Wildcard matches every value when present anywhere in a rule list.
const Wildcard = "all"

// MatchType selects the comparison used between a dimension value and a rule.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "startsWith"
	MatchIncludes   MatchType = "includes"
)

// Evaluation outcome reasons.
const (
	ReasonExcludedBySpecial = "excluded by special function"
	ReasonIncludedBySpecial = "included by special function"
	ReasonAllRulesPassed    = "all targeting rules passed"
)

// Predicate is a user-supplied special rule. A returned error (or a panic)
// is treated as the predicate returning false.
type Predicate func(ctx context.Context) (bool, error)

// RuleSet holds per-dimension rule lists plus an optional special predicate.
// A special predicate that returns true overrides every per-dimension rule.
type RuleSet struct {
	Dimensions map[string][]string
	Special    Predicate
}

// IsZero reports whether the rule set contains no rules at all.
func (rs RuleSet) IsZero() bool {
	return len(rs.Dimensions) == 0 && rs.Special == nil
}

// ContextValue is one dimension sample taken at evaluation time.
type ContextValue struct {
	Name  string
	Value any
}

// Snapshot is an ordered set of dimension samples. Rule evaluation walks the
// snapshot in order, so the producer's registration order is the rule order.
type Snapshot []ContextValue

// Value returns the sampled value for a dimension name.
func (s Snapshot) Value(name string) (any, bool) {
	for _, cv := range s {
		if cv.Name == name {
			return cv.Value, true
		}
	}
	return nil, false
}

// MatchTypes maps dimension names to their configured match type. Dimensions
// without an entry default to exact matching.
type MatchTypes map[string]MatchType

// For returns the match type configured for a dimension.
func (m MatchTypes) For(dimension string) MatchType {
	if mt, ok := m[dimension]; ok && mt != "" {
		return mt
	}
	return MatchExact
}

// Decision is the result of evaluating a rule set pair.
type Decision struct {
	Matched bool
	Reason  string
}

// Engine evaluates targeting rules. The zero value is usable; NewEngine wires
// a logger and per-dimension match types.
type Engine struct {
	logger     *slog.Logger
	matchTypes MatchTypes
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used when special predicates fail.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMatchTypes sets the per-dimension match type configuration.
func WithMatchTypes(m MatchTypes) Option {
	return func(e *Engine) { e.matchTypes = m }
}

// NewEngine creates a targeting engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default().WithGroup("targeting"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the rule set pair against the snapshot. Rules are checked in
// a fixed order with the first blocking rule winning: the exclude special
// predicate, the include special predicate (which short-circuits to a match),
// then the per-dimension exclude and include lists in snapshot order.
func (e *Engine) Evaluate(ctx context.Context, include, exclude RuleSet, snapshot Snapshot) Decision {
	if e.runPredicate(ctx, exclude.Special, "exclude") {
		return Decision{Matched: false, Reason: ReasonExcludedBySpecial}
	}
	if e.runPredicate(ctx, include.Special, "include") {
		return Decision{Matched: true, Reason: ReasonIncludedBySpecial}
	}

	for _, cv := range snapshot {
		mt := e.matchTypes.For(cv.Name)
		if rules, ok := exclude.Dimensions[cv.Name]; ok {
			if IsExcluded(cv.Value, rules, mt) {
				return Decision{
					Matched: false,
					Reason:  fmt.Sprintf("Excluded by %s: %v", cv.Name, cv.Value),
				}
			}
		}
		if rules, ok := include.Dimensions[cv.Name]; ok {
			if !MatchesRule(cv.Value, rules, mt) {
				return Decision{
					Matched: false,
					Reason:  fmt.Sprintf("Not included by %s: %v", cv.Name, cv.Value),
				}
			}
		}
	}

	return Decision{Matched: true, Reason: ReasonAllRulesPassed}
}

// runPredicate invokes a special predicate inside an error boundary. A nil
// predicate, an error, or a panic all count as false.
func (e *Engine) runPredicate(ctx context.Context, p Predicate, kind string) (result bool) {
	if p == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("special predicate panicked", "kind", kind, "panic", r)
			result = false
		}
	}()
	ok, err := p(ctx)
	if err != nil {
		e.logger.Warn("special predicate failed", "kind", kind, "error", err)
		return false
	}
	return ok
}

// MatchesRule reports whether a value satisfies an include rule list. An
// empty list or a list containing the wildcard matches everything. Values and
// rules are lower-cased and stringified before comparison.
func MatchesRule(value any, rules []string, matchType MatchType) bool {
	if len(rules) == 0 {
		return true
	}
	return matchAny(value, rules, matchType)
}

// IsExcluded reports whether a value is blocked by an exclude rule list. The
// wildcard excludes everything, but unlike MatchesRule an empty list excludes
// nothing: absence of an include rule means "don't care" while absence of an
// exclude rule means "nothing to exclude".
func IsExcluded(value any, rules []string, matchType MatchType) bool {
	if len(rules) == 0 {
		return false
	}
	return matchAny(value, rules, matchType)
}

// MatchesDomain reports whether a host is allowed by a domain list. An empty
// list or the wildcard admits any host; otherwise membership is an exact,
// case-sensitive comparison, unlike dimension matching which lower-cases
// both sides.
func MatchesDomain(host string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	for _, d := range domains {
		if d == Wildcard {
			return true
		}
	}
	for _, d := range domains {
		if d == host {
			return true
		}
	}
	return false
}

func matchAny(value any, rules []string, matchType MatchType) bool {
	v := normalize(value)
	for _, rule := range rules {
		r := strings.ToLower(rule)
		if r == Wildcard {
			return true
		}
		switch matchType {
		case MatchStartsWith:
			if strings.HasPrefix(v, r) {
				return true
			}
		case MatchIncludes:
			if strings.Contains(v, r) {
				return true
			}
		default:
			if v == r {
				return true
			}
		}
	}
	return false
}

// normalize stringifies and lower-cases a dimension value. A nil value (for
// example from a failed context getter) normalizes to the empty string so it
// can never satisfy a non-wildcard rule.
func normalize(value any) string {
	if value == nil {
		return ""
	}
	return strings.ToLower(fmt.Sprintf("%v", value))
}
