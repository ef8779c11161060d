package cli

import (
	"context"
	"fmt"

	"meal-buddy/internal/app"
	"meal-buddy/internal/config"
	"meal-buddy/internal/logger"

	"github.com/spf13/cobra"
)

// Opener builds the services a command runs against.
type Opener func(ctx context.Context) (*app.Services, error)

// Execute runs the CLI against the configured store.
func Execute(ctx context.Context) error {
	return NewRoot(openFromEnv).ExecuteContext(ctx)
}

func openFromEnv(ctx context.Context) (*app.Services, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.Open(ctx, cfg, logger.Init(cfg.LogLevel, cfg.LogFormat))
}

// NewRoot builds the command tree. Services are opened once before any
// subcommand runs and closed after it returns.
func NewRoot(open Opener) *cobra.Command {
	var svc *app.Services

	root := &cobra.Command{
		Use:           "meal-buddy",
		Short:         "Turn a meal plan document into meal ideas and a grocery list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			svc, err = open(cmd.Context())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if svc == nil {
				return nil
			}
			return svc.Close()
		},
	}

	get := func() *app.Services { return svc }
	root.AddCommand(
		keyCmd(get),
		planCmd(get),
		suggestCmd(get),
		suggestionsCmd(get),
		groceriesCmd(get),
		metricsCmd(get),
	)
	return root
}

func keyCmd(svc func() *app.Services) *cobra.Command {
	key := &cobra.Command{
		Use:   "key",
		Short: "Manage the model API key",
	}
	key.AddCommand(&cobra.Command{
		Use:   "set <secret>",
		Short: "Store the API key used for extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc().App.SetCredential(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key saved.")
			return nil
		},
	})
	return key
}
