package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iptkeeper/iptkeeper/internal/iptables"
)

var ruleInsertIndex int

// RuleCmd groups the rule editing subcommands. Rule text is given in the
// familiar iptables argument syntax and tokenized the same way save output
// is, e.g.:
//
//	iptkeeper rule append filter INPUT -- -s 10.0.0.0/8 -j DROP
var RuleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Edit rules in the rules file",
}

var ruleAppendCmd = &cobra.Command{
	Use:   "append TABLE CHAIN -- RULESPEC...",
	Short: "Append a rule to a chain",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		rule, err := parseRuleArgs(args[2:])
		if err != nil {
			return err
		}
		return editRulesFile(func(rs *iptables.RuleSet) error {
			return rs.AppendRule(args[0], args[1], rule)
		})
	},
}

var ruleInsertCmd = &cobra.Command{
	Use:   "insert TABLE CHAIN -- RULESPEC...",
	Short: "Insert a rule at an index (default 0)",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		rule, err := parseRuleArgs(args[2:])
		if err != nil {
			return err
		}
		return editRulesFile(func(rs *iptables.RuleSet) error {
			return rs.InsertRule(args[0], args[1], ruleInsertIndex, rule)
		})
	},
}

var ruleRemoveCmd = &cobra.Command{
	Use:   "remove TABLE CHAIN INDEX",
	Short: "Remove the rule at a zero-based index",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("rule index %q is not a number", args[2])
		}
		return editRulesFile(func(rs *iptables.RuleSet) error {
			return rs.RemoveRule(args[0], args[1], index)
		})
	},
}

var ruleMoveCmd = &cobra.Command{
	Use:   "move TABLE CHAIN OLD NEW",
	Short: "Move a rule from one index to another",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldIndex, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("rule index %q is not a number", args[2])
		}
		newIndex, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("rule index %q is not a number", args[3])
		}
		return editRulesFile(func(rs *iptables.RuleSet) error {
			return rs.ChangeRuleIndex(args[0], args[1], oldIndex, newIndex)
		})
	},
}

func parseRuleArgs(specArgs []string) (*iptables.Rule, error) {
	rule, err := iptables.ParseRuleSpec(strings.Join(specArgs, " "))
	if err != nil {
		return nil, fmt.Errorf("parse rule spec: %w", err)
	}
	return rule, nil
}

func init() {
	ruleInsertCmd.Flags().IntVar(&ruleInsertIndex, "index", 0, "Zero-based insertion index; past-the-end appends")

	RuleCmd.AddCommand(ruleAppendCmd)
	RuleCmd.AddCommand(ruleInsertCmd)
	RuleCmd.AddCommand(ruleRemoveCmd)
	RuleCmd.AddCommand(ruleMoveCmd)
}
