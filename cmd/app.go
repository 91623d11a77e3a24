package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stt/internal/build"
	"github.com/conneroisu/stt/internal/config"
	"github.com/conneroisu/stt/internal/logging"
	"github.com/conneroisu/stt/internal/registry"
	"github.com/conneroisu/stt/internal/services"
	"github.com/conneroisu/stt/internal/transformer"
)

// app is what every template command needs, built from the configuration.
type app struct {
	config   *config.Config
	logger   logging.Logger
	registry *registry.Registry
	backend  *build.GoBackend
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logConfig := cfg.LoggerConfig()
	logConfig.Output = cmd.ErrOrStderr()
	logger := logging.NewLogger(logConfig)

	reg := registry.Default()
	if err := services.LoadRegistry(reg, cfg.Registry.Snapshot); err != nil {
		logger.Warn(cmdContext(cmd), err, "Ignoring unreadable registry snapshot")
	}

	backend, err := services.NewBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &app{config: cfg, logger: logger, registry: reg, backend: backend}, nil
}

func (a *app) transformer(extra ...transformer.Option) (*transformer.Transformer, error) {
	return transformer.New(services.TransformerOptions(a.config, a.backend, a.registry, a.logger, extra...)...)
}

// saveRegistry keeps tokens minted by this run resolvable by later runs.
func (a *app) saveRegistry(cmd *cobra.Command) {
	if err := services.SaveRegistry(a.registry, a.config.Registry.Snapshot); err != nil {
		a.logger.Warn(cmdContext(cmd), err, "Cannot save registry snapshot")
	}
}
