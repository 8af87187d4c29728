package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"syncademic/internal/domain"
)

// Wire discriminators for the condition and action sum types. Encoding
// polymorphic trees with a type tag keeps serialization flat and makes
// evaluation a plain switch.
const (
	condTypeTextField = "text_field"
	condTypeTime      = "time"
	condTypeAnd       = "and"
	condTypeOr        = "or"
	condTypeNot       = "not"

	actionTypeChangeColor = "change_color"
	actionTypeChangeField = "change_field"
	actionTypeDelete      = "delete_event"
)

// TextField names an event text attribute a condition or action touches.
type TextField string

const (
	FieldTitle       TextField = "title"
	FieldDescription TextField = "description"
	FieldLocation    TextField = "location"
)

func (f TextField) valid() bool {
	switch f {
	case FieldTitle, FieldDescription, FieldLocation:
		return true
	}
	return false
}

// Operator is the comparison a TextFieldCondition performs.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpRegex      Operator = "regex"
)

func (o Operator) valid() bool {
	switch o {
	case OpEquals, OpContains, OpStartsWith, OpEndsWith, OpRegex:
		return true
	}
	return false
}

// Condition is one node of a rule's condition tree.
type Condition struct {
	Type string `json:"type"`

	// text_field
	Field           TextField `json:"field,omitempty"`
	Operator        Operator  `json:"operator,omitempty"`
	Value           string    `json:"value,omitempty"`
	CaseInsensitive bool      `json:"case_insensitive,omitempty"`

	// time: event start must fall within [After, Before]; either bound
	// may be omitted.
	After  *time.Time `json:"after,omitempty"`
	Before *time.Time `json:"before,omitempty"`

	// and / or
	Conditions []Condition `json:"conditions,omitempty"`

	// not
	Condition *Condition `json:"condition,omitempty"`
}

// Action is one transformation applied when a rule matches.
type Action struct {
	Type string `json:"type"`

	// change_color
	Color string `json:"color,omitempty"`

	// change_field
	Field TextField `json:"field,omitempty"`
	Value string    `json:"value,omitempty"`
}

// Rule pairs a condition tree with the actions to apply on match.
type Rule struct {
	Condition Condition `json:"condition"`
	Actions   []Action  `json:"actions"`
}

// Ruleset is an ordered sequence of rules evaluated per event.
type Ruleset struct {
	Rules []Rule `json:"rules"`
}

// Limits bounds a ruleset at load time; zero values take the defaults
// from config.
type Limits struct {
	MaxRules                int
	MaxConditions           int
	MaxActions              int
	MaxNestingDepth         int
	MaxTextFieldValueLength int
}

func (l *Limits) normalize() {
	if l.MaxRules <= 0 {
		l.MaxRules = 15
	}
	if l.MaxConditions <= 0 {
		l.MaxConditions = 10
	}
	if l.MaxActions <= 0 {
		l.MaxActions = 5
	}
	if l.MaxNestingDepth <= 0 {
		l.MaxNestingDepth = 5
	}
	if l.MaxTextFieldValueLength <= 0 {
		l.MaxTextFieldValueLength = 256
	}
}

// ParseRuleset decodes the wire form and validates it against the limits.
// Any violation is a RulesetInvalid sync error; a malformed ruleset must
// abort the sync before any fetch happens.
func ParseRuleset(raw string, limits Limits) (*Ruleset, error) {
	limits.normalize()

	var rs Ruleset
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, domain.NewSyncError(domain.ErrRulesetInvalid, "ruleset.parse", err)
	}
	if err := rs.Validate(limits); err != nil {
		return nil, domain.NewSyncError(domain.ErrRulesetInvalid, "ruleset.validate", err)
	}
	return &rs, nil
}

// Validate checks structural limits: rule/condition/action counts,
// nesting depth and string lengths.
func (rs *Ruleset) Validate(limits Limits) error {
	limits.normalize()

	// An empty ruleset is legal and acts as the identity transform.
	if len(rs.Rules) > limits.MaxRules {
		return fmt.Errorf("ruleset has %d rules, limit is %d", len(rs.Rules), limits.MaxRules)
	}

	for i, rule := range rs.Rules {
		count := 0
		if err := validateCondition(rule.Condition, limits, 1, &count); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if count > limits.MaxConditions {
			return fmt.Errorf("rule %d has %d conditions, limit is %d", i, count, limits.MaxConditions)
		}
		if len(rule.Actions) == 0 {
			return fmt.Errorf("rule %d has no actions", i)
		}
		if len(rule.Actions) > limits.MaxActions {
			return fmt.Errorf("rule %d has %d actions, limit is %d", i, len(rule.Actions), limits.MaxActions)
		}
		for j, a := range rule.Actions {
			if err := validateAction(a, limits); err != nil {
				return fmt.Errorf("rule %d action %d: %w", i, j, err)
			}
		}
	}
	return nil
}

func validateCondition(c Condition, limits Limits, depth int, count *int) error {
	if depth > limits.MaxNestingDepth {
		return fmt.Errorf("condition nesting exceeds depth %d", limits.MaxNestingDepth)
	}
	*count++

	switch c.Type {
	case condTypeTextField:
		if !c.Field.valid() {
			return fmt.Errorf("unknown text field %q", c.Field)
		}
		if !c.Operator.valid() {
			return fmt.Errorf("unknown operator %q", c.Operator)
		}
		if c.Value == "" {
			return errors.New("text condition value is empty")
		}
		if len(c.Value) > limits.MaxTextFieldValueLength {
			return fmt.Errorf("condition value exceeds %d chars", limits.MaxTextFieldValueLength)
		}
	case condTypeTime:
		if c.After == nil && c.Before == nil {
			return errors.New("time condition needs at least one bound")
		}
		if c.After != nil && c.Before != nil && c.After.After(*c.Before) {
			return errors.New("time condition bounds are inverted")
		}
	case condTypeAnd, condTypeOr:
		if len(c.Conditions) == 0 {
			return fmt.Errorf("%s condition has no children", c.Type)
		}
		for _, child := range c.Conditions {
			if err := validateCondition(child, limits, depth+1, count); err != nil {
				return err
			}
		}
	case condTypeNot:
		if c.Condition == nil {
			return errors.New("not condition has no child")
		}
		return validateCondition(*c.Condition, limits, depth+1, count)
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	return nil
}

func validateAction(a Action, limits Limits) error {
	switch a.Type {
	case actionTypeChangeColor:
		if _, err := domain.ParseColor(a.Color); err != nil {
			return err
		}
	case actionTypeChangeField:
		if !a.Field.valid() {
			return fmt.Errorf("unknown text field %q", a.Field)
		}
		if len(a.Value) > limits.MaxTextFieldValueLength {
			return fmt.Errorf("action value exceeds %d chars", limits.MaxTextFieldValueLength)
		}
		if a.Field == FieldTitle && a.Value == "" {
			return errors.New("cannot set title to empty")
		}
	case actionTypeDelete:
		// no payload
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}
