package followup

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Call need categories.
const (
	CategorySales   = "sales"
	CategorySupport = "support"
	CategoryGeneral = "general"
)

// Classification is the AI's read of the call summary.
type Classification struct {
	Need     string `json:"need" validate:"required,max=120"`
	Category string `json:"category" validate:"required,oneof=sales support general"`
}

type aiClient interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error
}

type resultValidator interface {
	Struct(s any) error
}

// AIClassifier classifies call summaries and composes booking follow-ups
// through the structured-output AI client.
type AIClassifier struct {
	ai       aiClient
	validate resultValidator
}

// NewAIClassifier creates the Gemini-backed classifier.
func NewAIClassifier(ai aiClient, validate resultValidator) *AIClassifier {
	return &AIClassifier{ai: ai, validate: validate}
}

var classifySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"need": {
			Type:        genai.TypeString,
			Description: "A short phrase describing what the customer needs, e.g. 'an oil change'.",
		},
		"category": {
			Type: genai.TypeString,
			Enum: []string{CategorySales, CategorySupport, CategoryGeneral},
		},
	},
	Required: []string{"need", "category"},
}

// Classify extracts a need phrase and category from the call summary.
func (c *AIClassifier) Classify(ctx context.Context, summary string) (Classification, error) {
	prompt := fmt.Sprintf(`You classify phone call summaries for an auto service shop.
Summary: %q
Return the customer's need as a short phrase and a category.
Use "sales" for purchase or booking interest, "support" for complaints or
problems with past work, "general" for everything else.`, summary)

	var out Classification
	if err := c.ai.GenerateJSON(ctx, prompt, classifySchema, &out); err != nil {
		return Classification{}, fmt.Errorf("classify summary: %w", err)
	}
	out.Need = strings.TrimSpace(out.Need)
	out.Category = strings.ToLower(strings.TrimSpace(out.Category))
	if err := c.validate.Struct(out); err != nil {
		return Classification{}, fmt.Errorf("classification failed validation: %w", err)
	}
	return out, nil
}

var composeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"message": {
			Type:        genai.TypeString,
			Description: "The SMS text, at most 300 characters, containing the booking link verbatim.",
		},
	},
	Required: []string{"message"},
}

// ComposeBookingMessage generates the booking follow-up SMS. Callers must
// validate the result with ValidBookingMessage before sending.
func (c *AIClassifier) ComposeBookingMessage(ctx context.Context, businessName, need, link string) (string, error) {
	prompt := fmt.Sprintf(`Write one friendly SMS follow-up for a customer who just called %s about %s.
Invite them to book online using exactly this link: %s
Keep it under 300 characters, no emoji, no placeholders.`, businessName, need, link)

	var out struct {
		Message string `json:"message"`
	}
	if err := c.ai.GenerateJSON(ctx, prompt, composeSchema, &out); err != nil {
		return "", fmt.Errorf("compose booking message: %w", err)
	}
	return strings.TrimSpace(out.Message), nil
}
