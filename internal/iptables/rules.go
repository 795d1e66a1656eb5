package iptables

import (
	"log/slog"
)

// InsertRule places rule at index, shifting later rules right. An index past
// the end appends; a negative index fails. The rule's routing field is
// rewritten to the owning chain.
func (rs *RuleSet) InsertRule(table string, chainName string, index int, rule *Rule) error {
	chain, err := rs.chain("insert rule", table, chainName)
	if err != nil {
		return err
	}
	if index < 0 {
		return validationf("insert rule", "negative index %d", index)
	}

	rule.Chain = chainName
	if index >= len(chain.Rules) {
		chain.Rules = append(chain.Rules, rule)
	} else {
		chain.Rules = append(chain.Rules, nil)
		copy(chain.Rules[index+1:], chain.Rules[index:])
		chain.Rules[index] = rule
	}

	rs.logger.Debug("inserted rule", slog.String("table", table), slog.String("chain", chainName), slog.Int("index", index))

	return nil
}

// AppendRule adds rule at the end of the chain.
func (rs *RuleSet) AppendRule(table string, chainName string, rule *Rule) error {
	chain, err := rs.chain("append rule", table, chainName)
	if err != nil {
		return err
	}
	return rs.InsertRule(table, chainName, len(chain.Rules), rule)
}

// RemoveRule deletes the rule at index. Out-of-range indices fail; remaining
// rules re-pack to contiguous indices.
func (rs *RuleSet) RemoveRule(table string, chainName string, index int) error {
	chain, err := rs.chain("remove rule", table, chainName)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(chain.Rules) {
		return validationf("remove rule", "index %d out of range [0, %d)", index, len(chain.Rules))
	}

	chain.Rules = append(chain.Rules[:index], chain.Rules[index+1:]...)
	rs.logger.Debug("removed rule", slog.String("table", table), slog.String("chain", chainName), slog.Int("index", index))

	return nil
}

// ReplaceRule swaps the rule at index. An index past the end appends instead
// of failing; only a missing chain or a negative index is an error.
func (rs *RuleSet) ReplaceRule(table string, chainName string, index int, rule *Rule) error {
	chain, err := rs.chain("replace rule", table, chainName)
	if err != nil {
		return err
	}
	if index < 0 {
		return validationf("replace rule", "negative index %d", index)
	}

	rule.Chain = chainName
	if index >= len(chain.Rules) {
		chain.Rules = append(chain.Rules, rule)
	} else {
		chain.Rules[index] = rule
	}

	rs.logger.Debug("replaced rule", slog.String("table", table), slog.String("chain", chainName), slog.Int("index", index))

	return nil
}

// ChangeRuleIndex moves the rule at oldIndex to newIndex, composed as a
// remove followed by an insert. oldIndex must be in range and differ from
// newIndex; a newIndex past the end appends.
func (rs *RuleSet) ChangeRuleIndex(table string, chainName string, oldIndex int, newIndex int) error {
	chain, err := rs.chain("change rule index", table, chainName)
	if err != nil {
		return err
	}
	if oldIndex < 0 || oldIndex >= len(chain.Rules) {
		return validationf("change rule index", "index %d out of range [0, %d)", oldIndex, len(chain.Rules))
	}
	if newIndex < 0 {
		return validationf("change rule index", "negative index %d", newIndex)
	}
	if oldIndex == newIndex {
		return validationf("change rule index", "index %d unchanged", oldIndex)
	}

	rule := chain.Rules[oldIndex]
	if err := rs.RemoveRule(table, chainName, oldIndex); err != nil {
		return err
	}
	return rs.InsertRule(table, chainName, newIndex, rule)
}

// Rule returns the rule at index.
func (rs *RuleSet) Rule(table string, chainName string, index int) (*Rule, error) {
	chain, err := rs.chain("get rule", table, chainName)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(chain.Rules) {
		return nil, validationf("get rule", "index %d out of range [0, %d)", index, len(chain.Rules))
	}
	return chain.Rules[index], nil
}

// ReferringRules scans every chain in the table for rules whose jump or goto
// target names the given chain. Refs come back in reverse discovery order so
// a caller deleting by index while iterating never invalidates the indices
// still to come. The second return value is false when the question does not
// apply: built-in chains and chains of an unknown table have no referrer
// notion, which is distinct from an applicable chain with zero referrers.
func (rs *RuleSet) ReferringRules(table string, chainName string) ([]RuleRef, bool) {
	t := rs.Table(table)
	if t == nil {
		return nil, false
	}
	if IsBuiltinChain(table, chainName) {
		return nil, false
	}

	var refs []RuleRef
	for _, chain := range t.Chains {
		for i, rule := range chain.Rules {
			if target, ok := rule.JumpTarget(); ok && target == chainName {
				refs = append(refs, RuleRef{Chain: chain.Name, Index: i})
			}
		}
	}

	for i, j := 0, len(refs)-1; i < j; i, j = i+1, j-1 {
		refs[i], refs[j] = refs[j], refs[i]
	}

	return refs, true
}
