package compliance

import "github.com/Lllllllleong/rfqcompliance/internal/models"

// Schema is a provider-neutral subset of the OpenAPI schema object accepted
// by Gemini's responseSchema. The JSON form is sent as-is to the REST API;
// the Vertex client converts it to genai.Schema.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Schema types.
const (
	TypeString = "STRING"
	TypeNumber = "NUMBER"
	TypeArray  = "ARRAY"
	TypeObject = "OBJECT"
)

// ReportSchema returns the schema every audit result must conform to.
// A fresh tree is built on each call so callers may mutate it.
func ReportSchema() *Schema {
	flags := make([]string, len(models.Flags))
	for i, f := range models.Flags {
		flags[i] = string(f)
	}
	categories := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		categories[i] = string(c)
	}

	finding := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"requirementText": {
				Type:        TypeString,
				Description: "The mandatory requirement, quoted verbatim from the RFQ.",
			},
			"complianceScore": {
				Type:        TypeNumber,
				Description: "1 if fully met, 0.5 if partially met, 0 if not met.",
			},
			"responseSummary": {
				Type:        TypeString,
				Description: "How the bid addresses the requirement.",
			},
			"flag": {
				Type:        TypeString,
				Enum:        flags,
				Description: "COMPLIANT for score 1, PARTIAL for 0.5, NON_COMPLIANT for 0.",
			},
			"category": {
				Type: TypeString,
				Enum: categories,
			},
			"negotiationStance": {
				Type:        TypeString,
				Nullable:    true,
				Description: "Recommended negotiation position. Required when the score is below 1, omitted otherwise.",
			},
		},
		Required: []string{"requirementText", "complianceScore", "responseSummary", "flag", "category"},
	}

	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"executiveSummary": {
				Type:        TypeString,
				Description: "A short overview of the bid's overall compliance.",
			},
			"findings": {
				Type:  TypeArray,
				Items: finding,
			},
		},
		Required: []string{"executiveSummary", "findings"},
	}
}
