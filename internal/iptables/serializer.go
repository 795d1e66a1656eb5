package iptables

import (
	"fmt"
	"io"
	"strings"
)

// Render emits the RuleSet as iptables-restore input: for each table in
// first-seen order, the table header, every chain declaration, every rule
// grouped by chain in declaration order, and a closing COMMIT. The output
// re-parses to a structurally equal RuleSet.
func (rs *RuleSet) Render() string {
	var b strings.Builder
	for _, table := range rs.Tables {
		b.WriteString("*")
		b.WriteString(table.Name)
		b.WriteString("\n")
		for _, chain := range table.Chains {
			policy := chain.Policy
			if policy == "" {
				policy = "-"
			}
			fmt.Fprintf(&b, ":%s %s [%d:%d]\n", chain.Name, policy, chain.Packets, chain.Bytes)
		}
		for _, chain := range table.Chains {
			for _, rule := range chain.Rules {
				b.WriteString(RenderRule(rule))
				b.WriteString("\n")
			}
		}
		b.WriteString("COMMIT\n")
	}
	return b.String()
}

// Encode writes Render output to w.
func (rs *RuleSet) Encode(w io.Writer) error {
	_, err := io.WriteString(w, rs.Render())
	return err
}

// RenderRule reconstructs one rule line: the counter pair when present, the
// -A routing clause, one -m clause per aggregated module in encounter order,
// then the remaining options in stored order with negation and dash count
// restored. The routing and module fields are never re-emitted as generic
// options.
func RenderRule(rule *Rule) string {
	parts := make([]string, 0, 4+2*len(rule.Modules)+3*len(rule.Options))

	if rule.Counters != nil {
		parts = append(parts, fmt.Sprintf("[%d:%d]", rule.Counters.Packets, rule.Counters.Bytes))
	}
	parts = append(parts, "-A", rule.Chain)
	for _, module := range rule.Modules {
		parts = append(parts, "-m", module)
	}
	for _, opt := range rule.Options {
		if opt.Negated {
			parts = append(parts, "!")
		}
		dashes := "--"
		if len(opt.Name) == 1 {
			dashes = "-"
		}
		parts = append(parts, dashes+opt.Name)
		if opt.Value != "" {
			parts = append(parts, opt.Value)
		}
	}

	return strings.Join(parts, " ")
}
