package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config captures the runtime settings for iptkeeper. The rules file is the
// load/save target for every editing command; the IP version selects between
// the iptables and ip6tables executable families.
type Config struct {
	RulesFile        string `mapstructure:"rules_file"`
	IPVersion        int    `mapstructure:"ip_version"`
	ElevationCommand string `mapstructure:"elevation_command"`
	RestoreCounters  bool   `mapstructure:"restore_counters"`
	WatchInterval    string `mapstructure:"watch_interval"`
	ListenAddr       string `mapstructure:"listen_addr"`
	LogLevel         string `mapstructure:"log_level"`
}

// Load reads configuration values from viper into a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to load configuration: %w", err)
	}
	return cfg, nil
}
