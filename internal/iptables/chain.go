package iptables

import (
	"log/slog"
)

// AddChain creates a user-visible chain with the given starting counters. The
// table entry is created lazily when the kind is recognized but not yet
// present in the model.
func (rs *RuleSet) AddChain(table string, name string, packets uint64, bytes uint64) error {
	if !KnownTable(table) {
		return validationf("add chain", "unknown table %q", table)
	}
	if name == "" {
		return validationf("add chain", "chain name cannot be empty")
	}

	t := rs.Table(table)
	if t == nil {
		t = &Table{Name: table}
		rs.Tables = append(rs.Tables, t)
	}
	if t.Chain(name) != nil {
		return validationf("add chain", "chain %q already exists in table %q", name, table)
	}

	t.Chains = append(t.Chains, &Chain{Name: name, Packets: packets, Bytes: bytes})
	rs.logger.Debug("added chain", slog.String("table", table), slog.String("chain", name))

	return nil
}

// RenameChain renames a user-defined chain. With cascade, every rule in the
// table whose jump or goto target equals old is rewritten to new first, so no
// reference dangles afterward.
func (rs *RuleSet) RenameChain(table string, old string, new string, cascade bool) error {
	t := rs.Table(table)
	if t == nil {
		return validationf("rename chain", "unknown table %q", table)
	}
	if IsBuiltinChain(table, old) {
		return validationf("rename chain", "chain %q is built-in", old)
	}
	chain := t.Chain(old)
	if chain == nil {
		return validationf("rename chain", "chain %q does not exist in table %q", old, table)
	}
	if new == "" {
		return validationf("rename chain", "chain name cannot be empty")
	}
	if new != old && t.Chain(new) != nil {
		return validationf("rename chain", "chain %q already exists in table %q", new, table)
	}

	if cascade {
		rewritten := 0
		for _, c := range t.Chains {
			for _, rule := range c.Rules {
				for i := range rule.Options {
					if rule.Options[i].Value != old {
						continue
					}
					for _, jumpName := range jumpOptionNames {
						if rule.Options[i].Name == jumpName {
							rule.Options[i].Value = new
							rewritten++
							break
						}
					}
				}
			}
		}
		if rewritten > 0 {
			rs.logger.Info("rewrote jump targets for rename",
				slog.String("table", table),
				slog.String("old", old),
				slog.String("new", new),
				slog.Int("rules", rewritten),
			)
		}
	}

	chain.Name = new
	// The chain's own rules route by name too; without this the rendered
	// output would declare the new name but still append to the old one.
	for _, rule := range chain.Rules {
		rule.Chain = new
	}
	rs.logger.Debug("renamed chain", slog.String("table", table), slog.String("old", old), slog.String("new", new))

	return nil
}

// RemoveChain deletes a user-defined chain. Chains still referenced by a jump
// or goto rule cannot be removed; callers delete the referring rules first
// (ReferringRules reports them in removal-safe order).
func (rs *RuleSet) RemoveChain(table string, name string) error {
	t := rs.Table(table)
	if t == nil {
		return validationf("remove chain", "unknown table %q", table)
	}
	if IsBuiltinChain(table, name) {
		return validationf("remove chain", "chain %q is built-in", name)
	}
	if t.Chain(name) == nil {
		return validationf("remove chain", "chain %q does not exist in table %q", name, table)
	}
	refs, ok := rs.ReferringRules(table, name)
	if !ok || len(refs) > 0 {
		return validationf("remove chain", "chain %q has %d referring rule(s)", name, len(refs))
	}

	for i, c := range t.Chains {
		if c.Name == name {
			t.Chains = append(t.Chains[:i], t.Chains[i+1:]...)
			break
		}
	}
	rs.logger.Debug("removed chain", slog.String("table", table), slog.String("chain", name))

	return nil
}

// FlushChain clears the chain's rule sequence. Flushing a chain that already
// has no rules fails; a second flush in a row is an error, not a no-op.
func (rs *RuleSet) FlushChain(table string, name string) error {
	chain, err := rs.chain("flush chain", table, name)
	if err != nil {
		return err
	}
	if len(chain.Rules) == 0 {
		return validationf("flush chain", "chain %q has no rules", name)
	}

	count := len(chain.Rules)
	chain.Rules = nil
	rs.logger.Debug("flushed chain", slog.String("table", table), slog.String("chain", name), slog.Int("rules", count))

	return nil
}

// Policy returns the policy of a built-in chain.
func (rs *RuleSet) Policy(table string, name string) (string, error) {
	chain, err := rs.chain("get policy", table, name)
	if err != nil {
		return "", err
	}
	if !IsBuiltinChain(table, name) {
		return "", validationf("get policy", "chain %q is not built-in", name)
	}
	return chain.Policy, nil
}

// SetPolicy sets the policy of a built-in chain. User-defined chains never
// carry a policy.
func (rs *RuleSet) SetPolicy(table string, name string, policy string) error {
	chain, err := rs.chain("set policy", table, name)
	if err != nil {
		return err
	}
	if !IsBuiltinChain(table, name) {
		return validationf("set policy", "chain %q is not built-in", name)
	}
	if !validPolicy(policy) {
		return validationf("set policy", "invalid policy %q", policy)
	}

	chain.Policy = policy
	rs.logger.Debug("set policy", slog.String("table", table), slog.String("chain", name), slog.String("policy", policy))

	return nil
}

// ChainCounters returns the packet/byte counters of a chain.
func (rs *RuleSet) ChainCounters(table string, name string) (Counters, error) {
	chain, err := rs.chain("get counters", table, name)
	if err != nil {
		return Counters{}, err
	}
	return Counters{Packets: chain.Packets, Bytes: chain.Bytes}, nil
}

// SetChainCounters sets the packet/byte counters of any chain.
func (rs *RuleSet) SetChainCounters(table string, name string, packets uint64, bytes uint64) error {
	chain, err := rs.chain("set counters", table, name)
	if err != nil {
		return err
	}
	chain.Packets = packets
	chain.Bytes = bytes
	return nil
}

// chain resolves a table/chain pair for mutation, reporting failures under
// the given operation name.
func (rs *RuleSet) chain(op string, table string, name string) (*Chain, error) {
	t := rs.Table(table)
	if t == nil {
		return nil, validationf(op, "unknown table %q", table)
	}
	chain := t.Chain(name)
	if chain == nil {
		return nil, validationf(op, "chain %q does not exist in table %q", name, table)
	}
	return chain, nil
}
