package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iptkeeper/iptkeeper/internal/iptables"
)

// ApplyCmd represents the iptkeeper apply subcommand.
var ApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Restore the rules file into the running system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		logger := commandLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rs, err := iptables.LoadFile(cfg.RulesFile, logger)
		if err != nil {
			return err
		}
		if len(rs.Tables) == 0 {
			return fmt.Errorf("rules file %s holds no tables; refusing to restore an empty ruleset", cfg.RulesFile)
		}

		system, err := newSystem(cfg, logger)
		if err != nil {
			return err
		}

		counters := viper.GetBool("restore_counters")
		if err := system.Restore(ctx, rs, counters); err != nil {
			return fmt.Errorf("restore rules: %w", err)
		}

		logger.Info("ruleset applied",
			slog.String("rules_file", cfg.RulesFile),
			slog.Int("tables", len(rs.Tables)),
			slog.Bool("counters", counters),
		)

		return nil
	},
}

func init() {
	ApplyCmd.Flags().Bool("counters", false, "Restore packet/byte counters as well")
	if err := viper.BindPFlag("restore_counters", ApplyCmd.Flags().Lookup("counters")); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind counters flag: %v\n", err)
		os.Exit(1)
	}
}
