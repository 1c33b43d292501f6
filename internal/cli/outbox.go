package cli

import (
	"github.com/spf13/cobra"

	"github.com/angelmondragon/crm-backend/pkg/outbox"
)

// NewOutboxCommand groups outbox maintenance.
func NewOutboxCommand(rootOpts *RootOptions, boot Bootstrap) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Outbox maintenance",
	}
	cmd.AddCommand(newOutboxPruneCommand(rootOpts, boot))
	return cmd
}

func newOutboxPruneCommand(rootOpts *RootOptions, boot Bootstrap) *cobra.Command {
	var retentionDays int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete delivered and parked outbox rows past retention",
		Long: `Delete outbox rows that were published, or parked after exhausting
their publish attempts, before the retention cutoff. Pending rows are kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			return withEnv(cmd.Context(), rootOpts, boot, func(env *Env) error {
				params := outbox.PrunerParams{
					Logger:        env.Logger,
					DB:            env.DB,
					Repository:    outbox.NewRepository(env.DB.DB()),
					RetentionDays: retentionDays,
				}
				if env.Config != nil {
					params.MaxAttempts = env.Config.Outbox.MaxAttempts
					if retentionDays <= 0 {
						params.RetentionDays = env.Config.Outbox.RetentionDays
					}
				}
				pruner, err := outbox.NewPruner(params)
				if err != nil {
					return WrapExitError(ExitCommandError, "outbox prune", err)
				}
				result, err := pruner.Prune(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "outbox prune", err)
				}
				if formatter.Format == "json" {
					return formatter.JSON(result)
				}
				formatter.Printf("deleted %d outbox row(s) older than %s\n", result.Deleted, result.Cutoff.Format("2006-01-02T15:04:05Z07:00"))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "override the configured retention window")
	return cmd
}
