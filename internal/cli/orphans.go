package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/crm-backend/internal/activities"
)

type orphanOptions struct {
	failOnFound bool
}

// OrphanReport is the JSON shape of the orphans command.
type OrphanReport struct {
	Count int                 `json:"count"`
	Items []activities.Orphan `json:"items"`
}

// NewOrphansCommand lists areas of activity whose company no longer exists.
func NewOrphansCommand(rootOpts *RootOptions, boot Bootstrap) *cobra.Command {
	opts := &orphanOptions{}
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List activities pointing at missing companies",
		Long: `List areas of activity whose company_id no longer resolves.

The report is read-only. Use --fail to exit non-zero when orphans exist.`,
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
				orphans, err := env.Services.Activities.FindOrphans(cmd.Context())
				if err != nil {
					return WrapExitError(ExitCommandError, "find orphans", err)
				}
				formatter.VerboseLog("scanned areas of activity, %d orphan(s)", len(orphans))
				if err := writeOrphans(formatter, orphans); err != nil {
					return err
				}
				if opts.failOnFound && len(orphans) > 0 {
					return NewExitError(ExitFailure, fmt.Sprintf("%d orphaned activit(ies) found", len(orphans)))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.failOnFound, "fail", false, "exit 1 when orphans are found")
	return cmd
}

func writeOrphans(f *OutputFormatter, orphans []activities.Orphan) error {
	if orphans == nil {
		orphans = []activities.Orphan{}
	}
	if f.Format == "json" {
		return f.JSON(OrphanReport{Count: len(orphans), Items: orphans})
	}
	if len(orphans) == 0 {
		f.Printf("no orphaned activities\n")
		return nil
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVITY\tCONTACT\tMISSING COMPANY")
	for _, o := range orphans {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.AreaOfActivityID, o.ContactID, o.CompanyID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	f.Printf("%d orphaned activit(ies)\n", len(orphans))
	return nil
}
