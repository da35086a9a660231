// Package compliance defines the audit report schema and the pure scoring
// functions computed from it.
package compliance

import (
	"math"

	"github.com/Lllllllleong/rfqcompliance/internal/models"
)

// ComputeCompliancePercentage returns the unweighted mean score of the
// report's findings as a percentage rounded to one decimal. A report with no
// findings scores 0. Scores outside {0, 0.5, 1} contribute 0.
func ComputeCompliancePercentage(report models.Report) float64 {
	if len(report.Findings) == 0 {
		return 0
	}
	var sum float64
	for _, f := range report.Findings {
		if _, ok := models.FlagForScore(f.ComplianceScore); ok {
			sum += f.ComplianceScore
		}
	}
	pct := sum / float64(len(report.Findings)) * 100
	return math.Round(pct*10) / 10
}

// NormalizedFlag returns the flag a finding is counted under. Unknown flags,
// out-of-range scores and flags that disagree with the score all collapse
// to NON_COMPLIANT.
func NormalizedFlag(f models.Finding) models.Flag {
	if !f.Flag.Valid() {
		return models.FlagNonCompliant
	}
	expected, ok := models.FlagForScore(f.ComplianceScore)
	if !ok || expected != f.Flag {
		return models.FlagNonCompliant
	}
	return f.Flag
}

// Bucketize counts findings per normalized flag.
func Bucketize(findings []models.Finding) models.FlagCounts {
	var counts models.FlagCounts
	for _, f := range findings {
		switch NormalizedFlag(f) {
		case models.FlagCompliant:
			counts.Compliant++
		case models.FlagPartial:
			counts.Partial++
		default:
			counts.NonCompliant++
		}
	}
	return counts
}

// StanceViolations counts findings that break the negotiation stance rule:
// a stance is expected when the score is below 1 and absent at 1.
func StanceViolations(report models.Report) int {
	var n int
	for _, f := range report.Findings {
		hasStance := f.NegotiationStance != ""
		if (f.ComplianceScore < 1) != hasStance {
			n++
		}
	}
	return n
}
