package rules

import (
	"fmt"
	"regexp"
	"strings"

	"syncademic/internal/domain"
)

// Engine is a compiled ruleset. Compile once per ruleset version; Apply
// is pure and safe for concurrent use, the regex cache is read-only
// after compilation.
type Engine struct {
	rules []compiledRule
}

type compiledRule struct {
	match   matcher
	actions []Action
}

// matcher evaluates one condition subtree against an event.
type matcher func(ev domain.Event) bool

// Compile validates nothing (callers run ParseRuleset/Validate first)
// but precompiles every regex condition. A pattern that fails to compile
// is a RulesetInvalid error surfaced before the pipeline begins.
// Patterns are matched as written: no implicit anchoring, no implicit
// wrapping in ".*".
func Compile(rs *Ruleset) (*Engine, error) {
	cache := make(map[string]*regexp.Regexp)

	eng := &Engine{rules: make([]compiledRule, 0, len(rs.Rules))}
	for i, rule := range rs.Rules {
		m, err := compileCondition(rule.Condition, cache)
		if err != nil {
			return nil, domain.NewSyncError(domain.ErrRulesetInvalid, "ruleset.compile",
				fmt.Errorf("rule %d: %w", i, err))
		}
		eng.rules = append(eng.rules, compiledRule{match: m, actions: rule.Actions})
	}
	return eng, nil
}

// Apply evaluates the rules against each event, in declared order, with
// cumulative actions. A DeleteEvent action short-circuits the remaining
// rules for that event and excludes it from the output. The input slice
// is never mutated.
func (e *Engine) Apply(events []domain.Event) []domain.Event {
	out := make([]domain.Event, 0, len(events))

	for _, ev := range events {
		deleted := false
		for _, rule := range e.rules {
			if !rule.match(ev) {
				continue
			}
			for _, a := range rule.actions {
				if a.Type == actionTypeDelete {
					deleted = true
					break
				}
				ev = applyAction(ev, a)
			}
			if deleted {
				break
			}
		}
		if !deleted {
			out = append(out, ev)
		}
	}
	return out
}

func applyAction(ev domain.Event, a Action) domain.Event {
	switch a.Type {
	case actionTypeChangeColor:
		// Validated at load; ParseColor cannot fail here.
		c, _ := domain.ParseColor(a.Color)
		ev.Color = c
	case actionTypeChangeField:
		switch a.Field {
		case FieldTitle:
			ev.Title = a.Value
		case FieldDescription:
			ev.Description = a.Value
		case FieldLocation:
			ev.Location = a.Value
		}
	}
	return ev
}

func compileCondition(c Condition, cache map[string]*regexp.Regexp) (matcher, error) {
	switch c.Type {
	case condTypeTextField:
		return compileTextCondition(c, cache)

	case condTypeTime:
		after, before := c.After, c.Before
		return func(ev domain.Event) bool {
			if after != nil && ev.Start.Before(*after) {
				return false
			}
			if before != nil && ev.Start.After(*before) {
				return false
			}
			return true
		}, nil

	case condTypeAnd:
		children, err := compileChildren(c.Conditions, cache)
		if err != nil {
			return nil, err
		}
		return func(ev domain.Event) bool {
			for _, m := range children {
				if !m(ev) {
					return false
				}
			}
			return true
		}, nil

	case condTypeOr:
		children, err := compileChildren(c.Conditions, cache)
		if err != nil {
			return nil, err
		}
		return func(ev domain.Event) bool {
			for _, m := range children {
				if m(ev) {
					return true
				}
			}
			return false
		}, nil

	case condTypeNot:
		child, err := compileCondition(*c.Condition, cache)
		if err != nil {
			return nil, err
		}
		return func(ev domain.Event) bool { return !child(ev) }, nil

	default:
		return nil, fmt.Errorf("unknown condition type %q", c.Type)
	}
}

func compileChildren(cs []Condition, cache map[string]*regexp.Regexp) ([]matcher, error) {
	out := make([]matcher, 0, len(cs))
	for _, c := range cs {
		m, err := compileCondition(c, cache)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func compileTextCondition(c Condition, cache map[string]*regexp.Regexp) (matcher, error) {
	field := c.Field
	value := c.Value
	ci := c.CaseInsensitive

	if c.Operator == OpRegex {
		pattern := value
		if ci {
			pattern = "(?i)" + pattern
		}
		re, ok := cache[pattern]
		if !ok {
			var err error
			re, err = regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("regex %q: %w", value, err)
			}
			cache[pattern] = re
		}
		return func(ev domain.Event) bool {
			return re.MatchString(textField(ev, field))
		}, nil
	}

	op := c.Operator
	return func(ev domain.Event) bool {
		subject := textField(ev, field)
		probe := value
		if ci {
			subject = strings.ToLower(subject)
			probe = strings.ToLower(probe)
		}
		switch op {
		case OpEquals:
			return subject == probe
		case OpContains:
			return strings.Contains(subject, probe)
		case OpStartsWith:
			return strings.HasPrefix(subject, probe)
		case OpEndsWith:
			return strings.HasSuffix(subject, probe)
		}
		return false
	}, nil
}

func textField(ev domain.Event, f TextField) string {
	switch f {
	case FieldTitle:
		return ev.Title
	case FieldDescription:
		return ev.Description
	case FieldLocation:
		return ev.Location
	}
	return ""
}
