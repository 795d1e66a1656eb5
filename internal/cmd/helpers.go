package cmd

import (
	"fmt"
	"log/slog"

	"github.com/iptkeeper/iptkeeper/internal/config"
	"github.com/iptkeeper/iptkeeper/internal/iptables"
	"github.com/iptkeeper/iptkeeper/internal/logging"
)

func commandLogger() *slog.Logger {
	logger := logging.GetLogger()
	if logger == nil {
		logger = slog.Default()
	}
	return logger
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if cfg.RulesFile == "" {
		return config.Config{}, fmt.Errorf("rules file path cannot be empty; set --rules-file or IPTKEEPER_RULES_FILE")
	}
	return cfg, nil
}

func newSystem(cfg config.Config, logger *slog.Logger) (*iptables.System, error) {
	system, err := iptables.NewSystem(nil, cfg.IPVersion, cfg.ElevationCommand, logger)
	if err != nil {
		return nil, fmt.Errorf("configure save/restore collaborator: %w", err)
	}
	return system, nil
}
