package enums

import (
	"fmt"
	"strings"
)

// SynergyStatus is the lifecycle state of a synergy.
type SynergyStatus string

const (
	SynergyStatusActive    SynergyStatus = "Active"
	SynergyStatusInactive  SynergyStatus = "Inactive"
	SynergyStatusPending   SynergyStatus = "Pending"
	SynergyStatusOnHold    SynergyStatus = "On Hold"
	SynergyStatusCompleted SynergyStatus = "Completed"
	SynergyStatusArchived  SynergyStatus = "archived"
)

var validSynergyStatuses = []SynergyStatus{
	SynergyStatusActive,
	SynergyStatusInactive,
	SynergyStatusPending,
	SynergyStatusOnHold,
	SynergyStatusCompleted,
	SynergyStatusArchived,
}

// String implements fmt.Stringer.
func (s SynergyStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SynergyStatus.
func (s SynergyStatus) IsValid() bool {
	for _, candidate := range validSynergyStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSynergyStatus matches case-insensitively so "on hold" and "On Hold" agree.
func ParseSynergyStatus(value string) (SynergyStatus, error) {
	normalized := strings.TrimSpace(value)
	for _, candidate := range validSynergyStatuses {
		if strings.EqualFold(string(candidate), normalized) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid synergy status %q", value)
}

// CanTransitionTo encodes the synergy status machine. Archived absorbs
// everything, Completed only allows archival, every other pair of editable
// statuses is reversible.
func (s SynergyStatus) CanTransitionTo(next SynergyStatus) bool {
	if !next.IsValid() || !s.IsValid() {
		return false
	}
	if s == next {
		return s != SynergyStatusArchived
	}
	switch s {
	case SynergyStatusArchived:
		return false
	case SynergyStatusCompleted:
		return next == SynergyStatusArchived
	default:
		return true
	}
}

// SynergyType tags the origin of a synergy.
type SynergyType string

const (
	SynergyTypeDeal SynergyType = "deal"
)
