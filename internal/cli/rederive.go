package cli

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/crm-backend/internal/synergies"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
)

// RederiveResult is the JSON shape of the rederive command.
type RederiveResult struct {
	DealID   string        `json:"deal_id"`
	Created  *synergyLine  `json:"created,omitempty"`
	Archived []synergyLine `json:"archived"`
}

type synergyLine struct {
	ID        string     `json:"id"`
	ContactID string     `json:"contact_id"`
	CompanyID string     `json:"company_id"`
	Status    string     `json:"status"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

func synergyLineFromModel(s models.Synergy) synergyLine {
	return synergyLine{
		ID:        s.ID.String(),
		ContactID: s.ContactID.String(),
		CompanyID: s.CompanyID.String(),
		Status:    string(s.Status),
		EndDate:   s.EndDate,
	}
}

// NewRederiveCommand settles one deal's synergies against its current
// association, repairing drift left by failed writes or manual edits.
func NewRederiveCommand(rootOpts *RootOptions, boot Bootstrap) *cobra.Command {
	return &cobra.Command{
		Use:           "rederive <deal-id>",
		Short:         "Re-derive the synergies of one deal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dealID, err := uuid.Parse(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid deal id", err)
			}
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			return withEnv(cmd.Context(), rootOpts, boot, func(env *Env) error {
				derivation, err := env.Services.Deriver.Rederive(cmd.Context(), dealID)
				if err != nil {
					return WrapExitError(ExitFailure, "rederive", err)
				}
				return writeDerivation(formatter, dealID, derivation)
			})
		},
	}
}

func writeDerivation(f *OutputFormatter, dealID uuid.UUID, d *synergies.Derivation) error {
	result := RederiveResult{DealID: dealID.String(), Archived: []synergyLine{}}
	if d != nil {
		if d.Created != nil {
			line := synergyLineFromModel(*d.Created)
			result.Created = &line
		}
		for _, s := range d.Archived {
			result.Archived = append(result.Archived, synergyLineFromModel(s))
		}
	}
	if f.Format == "json" {
		return f.JSON(result)
	}
	if result.Created == nil && len(result.Archived) == 0 {
		f.Printf("deal %s: synergies already consistent\n", result.DealID)
		return nil
	}
	f.Printf("deal %s\n", result.DealID)
	if result.Created != nil {
		f.Printf("  created  %s  contact=%s company=%s\n", result.Created.ID, result.Created.ContactID, result.Created.CompanyID)
	}
	for _, s := range result.Archived {
		f.Printf("  archived %s  contact=%s company=%s\n", s.ID, s.ContactID, s.CompanyID)
	}
	return nil
}
