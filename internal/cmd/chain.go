package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iptkeeper/iptkeeper/internal/iptables"
)

var renameCascade bool

// ChainCmd groups the chain editing subcommands. Every subcommand loads the
// rules file, applies one mutation, and writes the file back.
var ChainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Edit chains in the rules file",
}

var chainAddCmd = &cobra.Command{
	Use:   "add TABLE NAME",
	Short: "Add a user-defined chain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRulesFile(func(rs *iptables.RuleSet) error {
			return rs.AddChain(args[0], args[1], 0, 0)
		})
	},
}

var chainRenameCmd = &cobra.Command{
	Use:   "rename TABLE OLD NEW",
	Short: "Rename a user-defined chain",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRulesFile(func(rs *iptables.RuleSet) error {
			return rs.RenameChain(args[0], args[1], args[2], renameCascade)
		})
	},
}

var chainRemoveCmd = &cobra.Command{
	Use:   "remove TABLE NAME",
	Short: "Remove an unreferenced user-defined chain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRulesFile(func(rs *iptables.RuleSet) error {
			return rs.RemoveChain(args[0], args[1])
		})
	},
}

var chainFlushCmd = &cobra.Command{
	Use:   "flush TABLE NAME",
	Short: "Clear all rules from a chain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRulesFile(func(rs *iptables.RuleSet) error {
			return rs.FlushChain(args[0], args[1])
		})
	},
}

var chainPolicyCmd = &cobra.Command{
	Use:   "policy TABLE NAME POLICY",
	Short: "Set the policy of a built-in chain",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRulesFile(func(rs *iptables.RuleSet) error {
			return rs.SetPolicy(args[0], args[1], args[2])
		})
	},
}

// editRulesFile runs one mutation against the loaded rules file and persists
// the result only when the mutation succeeds.
func editRulesFile(mutate func(*iptables.RuleSet) error) error {
	logger := commandLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rs, err := iptables.LoadFile(cfg.RulesFile, logger)
	if err != nil {
		return err
	}

	if err := mutate(rs); err != nil {
		return err
	}

	if err := iptables.SaveFile(cfg.RulesFile, rs); err != nil {
		return err
	}

	logger.Info("rules file updated", slog.String("rules_file", cfg.RulesFile))

	return nil
}

func init() {
	chainRenameCmd.Flags().BoolVar(&renameCascade, "cascade", false, "Rewrite jump targets referencing the old name first")

	ChainCmd.AddCommand(chainAddCmd)
	ChainCmd.AddCommand(chainRenameCmd)
	ChainCmd.AddCommand(chainRemoveCmd)
	ChainCmd.AddCommand(chainFlushCmd)
	ChainCmd.AddCommand(chainPolicyCmd)
}
