package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dreamware/keypart/internal/partition"
)

// Config is the scheduler's flat configuration record. Every field is
// optional except NPartitions.
type Config struct {
	NPartitions         int             `mapstructure:"n_partitions"`
	RepartitionMethod   partition.Method `mapstructure:"repartition_method"`
	RepartitionInterval int64           `mapstructure:"repartition_interval"`
	LoadRequestsPath    string          `mapstructure:"load_requests_path"`
	NInitialKeys        int             `mapstructure:"n_initial_keys"`
	PrintPercentage     int             `mapstructure:"print_percentage"`
}

// Load reads configuration from an optional YAML file at path (skipped if
// path is empty; a non-empty path that cannot be read is an error) and
// environment variables prefixed KEYPART_, applying a default for every
// field but NPartitions.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("keypart")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows; bind the keys that have
	// no default so their KEYPART_ variables are picked up too.
	_ = v.BindEnv("n_partitions")
	_ = v.BindEnv("load_requests_path")

	v.SetDefault("repartition_method", string(partition.MethodRoundRobin))
	v.SetDefault("repartition_interval", int64(0))
	v.SetDefault("n_initial_keys", 0)
	v.SetDefault("print_percentage", 0)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields Load cannot express as viper defaults.
func (c Config) Validate() error {
	if c.NPartitions <= 0 {
		return fmt.Errorf("config: n_partitions is required and must be > 0")
	}
	switch c.RepartitionMethod {
	case partition.MethodMETIS, partition.MethodKaHIP, partition.MethodFennel, partition.MethodReFennel, partition.MethodRoundRobin:
	default:
		return fmt.Errorf("config: unknown repartition_method %q", c.RepartitionMethod)
	}
	if c.RepartitionInterval < 0 {
		return fmt.Errorf("config: repartition_interval must be >= 0")
	}
	if c.PrintPercentage < 0 || c.PrintPercentage > 100 {
		return fmt.Errorf("config: print_percentage must be within [0,100]")
	}
	return nil
}
