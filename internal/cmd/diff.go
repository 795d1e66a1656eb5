package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/iptkeeper/iptkeeper/internal/iptables"
)

// DiffCmd represents the iptkeeper diff subcommand.
var DiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare the rules file against the running ruleset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger := commandLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fileRules, err := iptables.LoadFile(cfg.RulesFile, logger)
		if err != nil {
			return err
		}

		system, err := newSystem(cfg, logger)
		if err != nil {
			return err
		}
		runningRules, err := system.Capture(ctx)
		if err != nil {
			return fmt.Errorf("capture running rules: %w", err)
		}

		// Both sides go through the same renderer, so whitespace and
		// counter formatting are already normalized.
		fileText := fileRules.Render()
		runningText := runningRules.Render()

		if fileText == runningText {
			fmt.Fprintln(os.Stdout, "No changes detected.")
			return nil
		}

		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(fileText),
			B:        difflib.SplitLines(runningText),
			FromFile: cfg.RulesFile,
			ToFile:   "running",
			Context:  3,
		}
		text, err := difflib.GetUnifiedDiffString(diff)
		if err != nil {
			return fmt.Errorf("render diff: %w", err)
		}
		fmt.Fprint(os.Stdout, text)

		return fmt.Errorf("rules file differs from running ruleset")
	},
}
