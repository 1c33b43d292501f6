// Package cli implements crmctl, the operator tool for inspecting and
// repairing relationship data outside the request path.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/crm-backend/internal/app"
	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Env is what a command runs against.
type Env struct {
	Config   *config.Config
	DB       *db.Client
	Services *app.Services
	Logger   *logger.Logger
}

// Bootstrap opens the environment for one command invocation. The returned
// func releases it.
type Bootstrap func(ctx context.Context, opts *RootOptions) (*Env, func() error, error)

// NewRootCommand creates the crmctl command tree.
func NewRootCommand(boot Bootstrap) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "crmctl",
		Short: "crmctl - CRM relationship maintenance",
		Long:  "Diagnostics and repair commands for contacts, companies, deals and their synergies.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewOrphansCommand(opts, boot))
	cmd.AddCommand(NewRederiveCommand(opts, boot))
	cmd.AddCommand(NewOutboxCommand(opts, boot))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withEnv runs fn against a freshly bootstrapped environment and always
// releases it.
func withEnv(ctx context.Context, opts *RootOptions, boot Bootstrap, fn func(*Env) error) (err error) {
	if boot == nil {
		return NewExitError(ExitCommandError, "no environment configured")
	}
	env, release, err := boot(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "bootstrap failed", err)
	}
	defer func() {
		if release == nil {
			return
		}
		if cerr := release(); cerr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "release failed", cerr)
		}
	}()
	return fn(env)
}
