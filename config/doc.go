// Package config provides application configuration management.
//
// The config package loads configuration from a YAML file with viper,
// applies defaults for every key, lets TABLEGEN_-prefixed environment
// variables override them and validates the result. It covers the server
// transport, sandbox limits, pipeline defaults, logging, the metrics
// endpoint and the list of data sources.
//
// Usage:
//
//	cfg, err := config.Load("tablegen.yaml")
//	if err != nil {
//	    return err
//	}
//	executor := sandbox.NewExecutor(log, cfg.ExecutorConfig())
package config
