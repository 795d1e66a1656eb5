package iptables

import (
	"errors"
	"fmt"
	"strings"
)

// ParseRuleSpec tokenizes one rule line into a Rule. The line must already be
// stripped of any leading bracketed counter pair; Parse handles that before
// delegating here. An option starts at a field with one or two leading
// dashes, optionally preceded by a standalone "!" which negates the option
// that follows it. Fields between two option delimiters are rejoined with
// single spaces to form the preceding option's value.
//
// The -A option routes the rule: its value becomes Rule.Chain instead of a
// generic option. Every -m occurrence accumulates into Rule.Modules in
// encounter order. A missing -A is not an error here; callers that require a
// destination chain (the save-format parser does, rule-spec entry points may
// not) check Rule.Chain themselves.
func ParseRuleSpec(line string) (*Rule, error) {
	rule := &Rule{}

	var (
		current    *Option
		valueWords []string
		negateNext bool
	)

	flush := func() error {
		if current == nil {
			return nil
		}
		current.Value = strings.Join(valueWords, " ")
		switch current.Name {
		case "A":
			if current.Negated {
				return errors.New("option -A cannot be negated")
			}
			if current.Value == "" {
				return errors.New("option -A requires a chain name")
			}
			if rule.Chain != "" {
				return fmt.Errorf("duplicate -A option (%q and %q)", rule.Chain, current.Value)
			}
			rule.Chain = current.Value
		case "m":
			if current.Negated {
				return errors.New("option -m cannot be negated")
			}
			if current.Value == "" {
				return errors.New("option -m requires a module name")
			}
			rule.Modules = append(rule.Modules, current.Value)
		default:
			rule.Options = append(rule.Options, *current)
		}
		current = nil
		valueWords = nil
		return nil
	}

	for _, field := range strings.Fields(line) {
		switch {
		case field == "!":
			if negateNext {
				return nil, errors.New("repeated negation marker")
			}
			negateNext = true
		case len(field) > 1 && strings.HasPrefix(field, "-"):
			if err := flush(); err != nil {
				return nil, err
			}
			name := strings.TrimPrefix(field, "-")
			name = strings.TrimPrefix(name, "-")
			if name == "" || strings.HasPrefix(name, "-") {
				return nil, fmt.Errorf("malformed option %q", field)
			}
			current = &Option{Name: name, Negated: negateNext}
			negateNext = false
		default:
			if negateNext {
				return nil, fmt.Errorf("expected an option after \"!\", got %q", field)
			}
			if current == nil {
				return nil, fmt.Errorf("value %q precedes any option", field)
			}
			valueWords = append(valueWords, field)
		}
	}

	if negateNext {
		return nil, errors.New("trailing negation marker")
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return rule, nil
}
