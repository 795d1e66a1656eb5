package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iptkeeper/iptkeeper/internal/iptables"
)

var (
	showSystem  bool
	showSummary bool
)

// ShowCmd represents the iptkeeper show subcommand.
var ShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the rules file (or running rules) in save format",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := commandLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var rs *iptables.RuleSet
		if showSystem {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			system, err := newSystem(cfg, logger)
			if err != nil {
				return err
			}
			rs, err = system.Capture(ctx)
			if err != nil {
				return fmt.Errorf("capture running rules: %w", err)
			}
		} else {
			rs, err = iptables.LoadFile(cfg.RulesFile, logger)
			if err != nil {
				return err
			}
		}

		if showSummary {
			for _, table := range rs.Tables {
				fmt.Fprintf(os.Stdout, "table %s (%d chains)\n", table.Name, len(table.Chains))
				for _, chain := range table.Chains {
					policy := chain.Policy
					if policy == "" {
						policy = "-"
					}
					fmt.Fprintf(os.Stdout, "  %-24s policy %-7s %d rule(s) [%d:%d]\n",
						chain.Name, policy, len(chain.Rules), chain.Packets, chain.Bytes)
				}
			}
			return nil
		}

		return rs.Encode(os.Stdout)
	},
}

func init() {
	ShowCmd.Flags().BoolVar(&showSystem, "system", false, "Capture the running ruleset instead of reading the rules file")
	ShowCmd.Flags().BoolVar(&showSummary, "summary", false, "Print per-chain counts instead of full save output")
}
