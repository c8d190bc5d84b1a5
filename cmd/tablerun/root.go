package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bagofwords1/bagofwords-sub001/config"
	"github.com/bagofwords1/bagofwords-sub001/datasource"
	"github.com/bagofwords1/bagofwords-sub001/logger"
)

// openTimeout bounds connecting to the configured data sources.
const openTimeout = 30 * time.Second

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "tablerun",
		Short:         "Run table-building Starlark programs against configured data sources",
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (default: search ./config.yaml and ./config)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newSourcesCommand(opts))
	return cmd
}

// environment is what a subcommand needs from configuration.
type environment struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *datasource.Registry
}

// setup loads the configuration, builds the logger and opens every data
// source. The caller must call close.
func (o *rootOptions) setup(ctx context.Context) (*environment, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()
	reg, err := datasource.Open(openCtx, log.Named("datasource"), cfg.DataSources)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &environment{cfg: cfg, logger: log, registry: reg}, nil
}

func (e *environment) close() {
	if err := e.registry.Close(); err != nil {
		e.logger.Warn("failed to close data sources", zap.Error(err))
	}
	_ = e.logger.Sync()
}
