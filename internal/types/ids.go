package types

import "github.com/google/uuid"

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewProjectID generates a UUIDv7 project identifier.
func NewProjectID() ProjectID {
	return ProjectID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the store.
func ParseRuleID(s string) (RuleID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// ParseProjectID validates and converts a string to ProjectID.
func ParseProjectID(s string) (ProjectID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ProjectID(s), nil
}
