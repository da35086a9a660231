package compliance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Lllllllleong/rfqcompliance/internal/models"
)

// ErrSchemaMismatch is returned when a model payload is not a report.
var ErrSchemaMismatch = errors.New("payload does not match report schema")

type rawReport struct {
	ExecutiveSummary *string           `json:"executiveSummary"`
	Findings         *[]models.Finding `json:"findings"`
}

// ParseReport decodes a model text payload into a Report. Markdown code
// fences around the JSON are tolerated.
func ParseReport(text string) (models.Report, error) {
	clean := stripFences(text)
	if clean == "" {
		return models.Report{}, fmt.Errorf("%w: empty payload", ErrSchemaMismatch)
	}

	var raw rawReport
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return models.Report{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if raw.Findings == nil {
		return models.Report{}, fmt.Errorf("%w: missing findings", ErrSchemaMismatch)
	}

	report := models.Report{Findings: *raw.Findings}
	if raw.ExecutiveSummary != nil {
		report.ExecutiveSummary = *raw.ExecutiveSummary
	}
	if report.Findings == nil {
		report.Findings = []models.Finding{}
	}
	return report, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
