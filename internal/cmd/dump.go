package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/iptkeeper/iptkeeper/internal/iptables"
)

// DumpCmd represents the iptkeeper dump subcommand.
var DumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Capture the running ruleset into the rules file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger := commandLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		system, err := newSystem(cfg, logger)
		if err != nil {
			return err
		}

		rs, err := system.Capture(ctx)
		if err != nil {
			return fmt.Errorf("capture running rules: %w", err)
		}

		if err := iptables.SaveFile(cfg.RulesFile, rs); err != nil {
			return err
		}

		logger.Info("ruleset dumped",
			slog.String("rules_file", cfg.RulesFile),
			slog.Int("tables", len(rs.Tables)),
		)

		return nil
	},
}
