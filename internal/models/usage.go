package models

import "fmt"

// UsageRecord is the per-user usage document. The zero value is the record
// of a user who has never run an audit.
type UsageRecord struct {
	InitiatorChecks int  `json:"initiatorChecks" firestore:"initiatorChecks"`
	BidderChecks    int  `json:"bidderChecks" firestore:"bidderChecks"`
	Subscribed      bool `json:"subscribed" firestore:"subscribed"`
}

// Count returns the counter tracked for role.
func (u UsageRecord) Count(role Role) int {
	switch role {
	case RoleBidder:
		return u.BidderChecks
	case RoleInitiator:
		return u.InitiatorChecks
	}
	return 0
}

// Increment bumps the counter for role and returns the new value.
func (u *UsageRecord) Increment(role Role) (int, error) {
	switch role {
	case RoleBidder:
		u.BidderChecks++
		return u.BidderChecks, nil
	case RoleInitiator:
		u.InitiatorChecks++
		return u.InitiatorChecks, nil
	}
	return 0, fmt.Errorf("unknown role %q", string(role))
}
