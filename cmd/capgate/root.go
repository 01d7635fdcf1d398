package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"capgate/internal/app"
	"capgate/internal/registry"
)

type cliOptions struct {
	configPath string
	profile    string
	debug      bool
	logger     *zap.Logger
}

// envFlagBindings maps root flags to the environment variables that fill them
// when the flag is not given.
var envFlagBindings = map[string]string{
	"config": "CAPGATE_CONFIG",
	"debug":  "CAPGATE_DEBUG",
}

func newRootCommand(logger *zap.Logger) *cobra.Command {
	opts := cliOptions{logger: logger}

	root := &cobra.Command{
		Use:           "capgate",
		Short:         "Context-aware tool exposure for LLM clients over MCP",
		Version:       app.Version + " (" + app.Build + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyEnvBindings(cmd.Flags())
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a profile override file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&opts.profile, "profile", "", "profile name (development, production, testing, minimal); defaults to $CAPGATE_ENV")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable development logging")

	root.AddCommand(
		newServeCmd(&opts),
		newValidateCmd(&opts),
		newCatalogCmd(&opts),
		newProfileCmd(&opts),
		newAuditCmd(&opts),
	)

	return root
}

func applyEnvBindings(flags *pflag.FlagSet) error {
	for name, env := range envFlagBindings {
		flag := flags.Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}
		value, ok := os.LookupEnv(env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := flag.Value.Set(strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	return nil
}

func (o *cliOptions) logging() app.LoggingConfig {
	return app.LoggingConfig{Logger: o.logger, Debug: o.debug}
}

func (o *cliOptions) serveConfig() app.ServeConfig {
	return app.ServeConfig{
		ConfigPath: strings.TrimSpace(o.configPath),
		Profile:    strings.TrimSpace(o.profile),
	}
}

// withRegistry builds a registry for one-shot inspection.
func (o *cliOptions) withRegistry(ctx context.Context, fn func(*registry.Registry) error) error {
	cfg := o.serveConfig()
	cfg.Inspect = true
	reg, cleanup, err := app.InitializeRegistry(ctx, cfg, o.logging())
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(reg)
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
