package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iptkeeper/iptkeeper/internal/logging"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "iptkeeper",
	Short: "Parse, edit, and round-trip iptables-save rulesets",
	Long: `iptkeeper loads iptables-save output into a structured model, lets you edit
chains and rules with referential-integrity checks (no removing a chain that
rules still jump to), and writes restore-compatible text back out - to a file
or straight into iptables-restore.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetEnvPrefix("IPTKEEPER")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()

		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		logging.InitLogger(viper.GetString("log_level"), "iptkeeper")
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("rules-file", "/etc/iptkeeper/rules.v4", "Save-format rules file to load and save")
	rootCmd.PersistentFlags().Int("ip-version", 4, "IP version (4 or 6); selects iptables vs ip6tables executables")
	rootCmd.PersistentFlags().String("elevation-command", "", "Command prefix for subprocess invocation (e.g. sudo)")

	bindings := map[string]string{
		"log_level":         "log-level",
		"rules_file":        "rules-file",
		"ip_version":        "ip-version",
		"elevation_command": "elevation-command",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to bind %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	viper.SetDefault("restore_counters", false)

	rootCmd.AddCommand(ShowCmd)
	rootCmd.AddCommand(DumpCmd)
	rootCmd.AddCommand(ApplyCmd)
	rootCmd.AddCommand(DiffCmd)
	rootCmd.AddCommand(ChainCmd)
	rootCmd.AddCommand(RuleCmd)
	rootCmd.AddCommand(WatchCmd)
}
