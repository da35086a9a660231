package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/rfqcompliance/internal/compliance"
	"github.com/Lllllllleong/rfqcompliance/internal/invoker"
)

const DefaultAuditModel = "gemini-1.5-pro"

// VertexClient holds the pre-configured compliance auditor model.
type VertexClient struct {
	AuditModel *genai.GenerativeModel
	baseClient *genai.Client
}

var _ invoker.Generator = (*VertexClient)(nil)

// NewVertexClient creates a new client holding the auditor model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("%w: NewVertexClient: projectID and region cannot be empty", invoker.ErrConfiguration)
	}
	if modelName == "" {
		modelName = DefaultAuditModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	auditModel := baseClient.GenerativeModel(modelName)
	auditModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(invoker.SystemPrompt)},
	}
	auditModel.GenerationConfig = genai.GenerationConfig{
		// Structured output: the model must answer with a report object.
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(compliance.ReportSchema()),
		Temperature:      genai.Ptr[float32](0.0),
	}
	auditModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		AuditModel: auditModel,
		baseClient: baseClient,
	}, nil
}

// Generate runs one audit round trip against Vertex AI.
func (c *VertexClient) Generate(ctx context.Context, req invoker.Request) (string, error) {
	if c == nil || c.AuditModel == nil {
		return "", fmt.Errorf("%w: vertex client not initialized", invoker.ErrConfiguration)
	}

	resp, err := c.AuditModel.GenerateContent(ctx, genai.Text(invoker.UserPrompt(req)))
	if err != nil {
		return "", fmt.Errorf("failed to generate report from gemini: %w", err)
	}

	text := extractJSONContent(resp)
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned an empty response instead of JSON", invoker.ErrMalformedResponse)
	}
	return text, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// extractJSONContent concatenates the text parts of the first candidate.
func extractJSONContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

func toGenaiSchema(s *compliance.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Nullable:    s.Nullable,
		Enum:        s.Enum,
		Required:    s.Required,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case compliance.TypeString:
		return genai.TypeString
	case compliance.TypeNumber:
		return genai.TypeNumber
	case compliance.TypeArray:
		return genai.TypeArray
	case compliance.TypeObject:
		return genai.TypeObject
	}
	return genai.TypeUnspecified
}
