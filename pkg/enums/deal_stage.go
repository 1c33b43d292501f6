package enums

import (
	"fmt"
	"strings"
)

// DealStage is a column on the pipeline board.
type DealStage string

const (
	DealStageLead        DealStage = "lead"
	DealStageQualified   DealStage = "qualified"
	DealStageProposal    DealStage = "proposal"
	DealStageNegotiation DealStage = "negotiation"
	DealStageWon         DealStage = "won"
	DealStageLost        DealStage = "lost"
)

var validDealStages = []DealStage{
	DealStageLead,
	DealStageQualified,
	DealStageProposal,
	DealStageNegotiation,
	DealStageWon,
	DealStageLost,
}

// String implements fmt.Stringer.
func (s DealStage) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DealStage.
func (s DealStage) IsValid() bool {
	for _, candidate := range validDealStages {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsClosed reports whether the deal left the open part of the pipeline.
func (s DealStage) IsClosed() bool {
	return s == DealStageWon || s == DealStageLost
}

// ParseDealStage converts raw input into a DealStage.
func ParseDealStage(value string) (DealStage, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDealStages {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid deal stage %q", value)
}
