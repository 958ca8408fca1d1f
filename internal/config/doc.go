// Package config loads the scheduler's flat configuration record
// (n_partitions, repartition_method, repartition_interval,
// load_requests_path, n_initial_keys, print_percentage) via
// github.com/spf13/viper, supporting a YAML file plus environment
// variable overrides.
package config
