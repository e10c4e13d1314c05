// Package enrichment extracts customer attributes from call transcripts
// and merges them onto customer records under a confidence-aware policy.
package enrichment

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Extraction confidence tiers.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Extraction is a candidate set of customer attributes from one transcript.
// Empty strings mean the attribute was not mentioned.
type Extraction struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	VehicleMake      string `json:"vehicle_make"`
	VehicleModel     string `json:"vehicle_model"`
	VehicleYear      int    `json:"vehicle_year"`
	RequestedService string `json:"requested_service"`
	Confidence       string `json:"confidence" validate:"required,oneof=low medium high"`
}

// HasName reports whether a name was captured.
func (e Extraction) HasName() bool { return e.FirstName != "" }

// HasVehicleOrService reports whether any overwritable attribute is present.
func (e Extraction) HasVehicleOrService() bool {
	return e.VehicleMake != "" || e.VehicleModel != "" || e.VehicleYear != 0 || e.RequestedService != ""
}

type aiClient interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error
}

type resultValidator interface {
	Struct(s any) error
}

// Extractor pulls customer attributes out of transcripts through the
// structured-output AI client.
type Extractor struct {
	ai       aiClient
	validate resultValidator
}

// NewExtractor creates the Gemini-backed attribute extractor.
func NewExtractor(ai aiClient, validate resultValidator) *Extractor {
	return &Extractor{ai: ai, validate: validate}
}

var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"first_name":        {Type: genai.TypeString},
		"last_name":         {Type: genai.TypeString},
		"vehicle_make":      {Type: genai.TypeString},
		"vehicle_model":     {Type: genai.TypeString},
		"vehicle_year":      {Type: genai.TypeInteger},
		"requested_service": {Type: genai.TypeString},
		"confidence": {
			Type: genai.TypeString,
			Enum: []string{ConfidenceLow, ConfidenceMedium, ConfidenceHigh},
		},
	},
	Required: []string{"confidence"},
}

// Extract returns candidate attributes with an overall confidence tier.
func (e *Extractor) Extract(ctx context.Context, transcript string) (Extraction, error) {
	prompt := fmt.Sprintf(`Extract customer details from this auto shop call transcript.
Only include attributes the customer actually stated; leave the rest empty.
Rate your overall confidence as low, medium or high. Use low when the
customer never identified themselves or their vehicle clearly.

Transcript:
%s`, transcript)

	var out Extraction
	if err := e.ai.GenerateJSON(ctx, prompt, extractionSchema, &out); err != nil {
		return Extraction{}, fmt.Errorf("extract attributes: %w", err)
	}

	out.FirstName = strings.TrimSpace(out.FirstName)
	out.LastName = strings.TrimSpace(out.LastName)
	out.VehicleMake = strings.TrimSpace(out.VehicleMake)
	out.VehicleModel = strings.TrimSpace(out.VehicleModel)
	out.RequestedService = strings.TrimSpace(out.RequestedService)
	out.Confidence = strings.ToLower(strings.TrimSpace(out.Confidence))

	if err := e.validate.Struct(out); err != nil {
		return Extraction{}, fmt.Errorf("extraction failed validation: %w", err)
	}
	return out, nil
}
