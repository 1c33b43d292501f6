package enums

import (
	"fmt"
	"strings"
)

// ContactStatus tracks whether a contact is visible in active views.
type ContactStatus string

const (
	ContactStatusActive   ContactStatus = "active"
	ContactStatusArchived ContactStatus = "archived"
)

var validContactStatuses = []ContactStatus{
	ContactStatusActive,
	ContactStatusArchived,
}

func (s ContactStatus) String() string {
	return string(s)
}

func (s ContactStatus) IsValid() bool {
	for _, candidate := range validContactStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// EmailKind classifies contact email addresses.
type EmailKind string

const (
	EmailKindWork         EmailKind = "work"
	EmailKindPersonal     EmailKind = "personal"
	EmailKindPreviousWork EmailKind = "previous_work"
	EmailKindOther        EmailKind = "other"
)

var validEmailKinds = []EmailKind{
	EmailKindWork,
	EmailKindPersonal,
	EmailKindPreviousWork,
	EmailKindOther,
}

func (k EmailKind) IsValid() bool {
	for _, candidate := range validEmailKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseEmailKind normalizes user input; empty input defaults to work.
func ParseEmailKind(value string) (EmailKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return EmailKindWork, nil
	}
	for _, candidate := range validEmailKinds {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid email kind %q", value)
}

// PhoneKind classifies contact phone numbers.
type PhoneKind string

const (
	PhoneKindWork   PhoneKind = "work"
	PhoneKindMobile PhoneKind = "mobile"
	PhoneKindHome   PhoneKind = "home"
	PhoneKindOther  PhoneKind = "other"
)

var validPhoneKinds = []PhoneKind{
	PhoneKindWork,
	PhoneKindMobile,
	PhoneKindHome,
	PhoneKindOther,
}

func (k PhoneKind) IsValid() bool {
	for _, candidate := range validPhoneKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParsePhoneKind normalizes user input; empty input defaults to work.
func ParsePhoneKind(value string) (PhoneKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return PhoneKindWork, nil
	}
	for _, candidate := range validPhoneKinds {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid phone kind %q", value)
}
