package models

import "fmt"

// Flag is the categorical compliance outcome of a single finding.
type Flag string

const (
	FlagCompliant    Flag = "COMPLIANT"
	FlagPartial      Flag = "PARTIAL"
	FlagNonCompliant Flag = "NON_COMPLIANT"
)

// Flags lists every valid flag in schema order.
var Flags = []Flag{FlagCompliant, FlagPartial, FlagNonCompliant}

// Valid reports whether f is one of the three known flags.
func (f Flag) Valid() bool {
	switch f {
	case FlagCompliant, FlagPartial, FlagNonCompliant:
		return true
	}
	return false
}

// FlagForScore maps a compliance score to its flag. The boolean is false
// for scores outside {0, 0.5, 1}.
func FlagForScore(score float64) (Flag, bool) {
	switch score {
	case 1:
		return FlagCompliant, true
	case 0.5:
		return FlagPartial, true
	case 0:
		return FlagNonCompliant, true
	}
	return FlagNonCompliant, false
}

// Category classifies the RFQ clause a finding evaluates.
type Category string

const (
	CategoryLegal          Category = "LEGAL"
	CategoryFinancial      Category = "FINANCIAL"
	CategoryTechnical      Category = "TECHNICAL"
	CategoryTimeline       Category = "TIMELINE"
	CategoryReporting      Category = "REPORTING"
	CategoryAdministrative Category = "ADMINISTRATIVE"
	CategoryOther          Category = "OTHER"
)

// Categories lists every valid category in schema order.
var Categories = []Category{
	CategoryLegal,
	CategoryFinancial,
	CategoryTechnical,
	CategoryTimeline,
	CategoryReporting,
	CategoryAdministrative,
	CategoryOther,
}

// Finding is one evaluated RFQ requirement.
type Finding struct {
	RequirementText   string   `json:"requirementText" firestore:"requirementText"`
	ComplianceScore   float64  `json:"complianceScore" firestore:"complianceScore"`
	ResponseSummary   string   `json:"responseSummary" firestore:"responseSummary"`
	Flag              Flag     `json:"flag" firestore:"flag"`
	Category          Category `json:"category" firestore:"category"`
	NegotiationStance string   `json:"negotiationStance,omitempty" firestore:"negotiationStance,omitempty"`
}

// Report is the structured result of auditing a Bid against an RFQ.
type Report struct {
	ExecutiveSummary string    `json:"executiveSummary" firestore:"executiveSummary"`
	Findings         []Finding `json:"findings" firestore:"findings"`
}

// Role is the perspective the audit was run from.
type Role string

const (
	RoleBidder    Role = "BIDDER"
	RoleInitiator Role = "INITIATOR"
)

// CounterKey returns the UsageRecord field name incremented for this role.
func (r Role) CounterKey() (string, error) {
	switch r {
	case RoleBidder:
		return "bidderChecks", nil
	case RoleInitiator:
		return "initiatorChecks", nil
	}
	return "", fmt.Errorf("unknown role %q", string(r))
}

// StoredReport is a Report enriched with the metadata attached on save.
type StoredReport struct {
	ID        string `json:"id" firestore:"-"`
	UserID    string `json:"userId" firestore:"userId"`
	RFQName   string `json:"rfqName" firestore:"rfqName"`
	BidName   string `json:"bidName" firestore:"bidName"`
	Timestamp int64  `json:"timestamp" firestore:"timestamp"` // epoch ms
	Role      Role   `json:"role" firestore:"role"`
	Report
}

// FlagCounts is the number of findings per flag.
type FlagCounts struct {
	Compliant    int `json:"compliant"`
	Partial      int `json:"partial"`
	NonCompliant int `json:"nonCompliant"`
}

// Total returns the number of findings counted.
func (c FlagCounts) Total() int {
	return c.Compliant + c.Partial + c.NonCompliant
}
