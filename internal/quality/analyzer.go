// Package quality scores call transcripts, classifies the call outcome and
// conditionally auto-resolves tickets behind a confidence policy.
package quality

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Call outcomes, a closed set.
const (
	OutcomeAppointmentBooked = "appointment_booked"
	OutcomeSaleCompleted     = "sale_completed"
	OutcomeIssueResolved     = "issue_resolved"
	OutcomeEscalated         = "escalated"
	OutcomeNoActionNeeded    = "no_action_needed"
	OutcomeCustomerDropped   = "customer_dropped"
	OutcomeNeedsReview       = "needs_review"
)

// ConfidenceThreshold gates automatic ticket resolution.
const ConfidenceThreshold = 80

// terminalOutcomes are eligible for auto-resolution. Escalated and
// needs_review never auto-resolve regardless of confidence.
var terminalOutcomes = map[string]bool{
	OutcomeAppointmentBooked: true,
	OutcomeSaleCompleted:     true,
	OutcomeIssueResolved:     true,
	OutcomeNoActionNeeded:    true,
	OutcomeCustomerDropped:   true,
}

// IsTerminalOutcome reports whether the outcome may auto-resolve a ticket.
func IsTerminalOutcome(outcome string) bool { return terminalOutcomes[outcome] }

// ShouldAutoResolve applies the confidence policy.
func ShouldAutoResolve(outcome string, confidence int) bool {
	return confidence >= ConfidenceThreshold && IsTerminalOutcome(outcome)
}

// Scores holds the five sub-scores and the model's own total estimate.
// Sub-scores clamp to [0,20]; the total clamps to [0,100] and is kept as
// estimated rather than recomputed from the parts.
type Scores struct {
	Greeting        int `json:"greeting"`
	Communication   int `json:"communication"`
	ProblemSolving  int `json:"problem_solving"`
	Professionalism int `json:"professionalism"`
	Closing         int `json:"closing"`
	Total           int `json:"total"`
}

// BookingDetails is the structured extraction handed to shop-management
// export.
type BookingDetails struct {
	Customer struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	} `json:"customer"`
	Vehicle struct {
		Make  string `json:"make"`
		Model string `json:"model"`
		Year  int    `json:"year"`
	} `json:"vehicle"`
	Service struct {
		Requested string `json:"requested"`
		Notes     string `json:"notes"`
	} `json:"service"`
	Logistics struct {
		PreferredDate string `json:"preferred_date"`
		PreferredTime string `json:"preferred_time"`
		DropOff       bool   `json:"drop_off"`
	} `json:"logistics"`
	MissingCriticalFields []string `json:"missing_critical_fields"`
}

// ResponseTimes are the analyzer's read of agent responsiveness.
type ResponseTimes struct {
	AvgSeconds float64 `json:"avg_seconds"`
	MaxSeconds float64 `json:"max_seconds"`
}

// Result is the strictly-typed analysis output. A result failing validation
// is discarded whole; no partial write happens.
type Result struct {
	Scores         Scores         `json:"scores"`
	Feedback       string         `json:"feedback" validate:"required,max=2000"`
	Outcome        string         `json:"outcome" validate:"required,oneof=appointment_booked sale_completed issue_resolved escalated no_action_needed customer_dropped needs_review"`
	Confidence     int            `json:"confidence"`
	Reasoning      string         `json:"reasoning" validate:"required,max=500"`
	BookingDetails BookingDetails `json:"booking_details"`
	ResponseTimes  ResponseTimes  `json:"response_times"`
}

type aiClient interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error
}

type resultValidator interface {
	Struct(s any) error
}

// Analyzer runs transcript analysis through the structured-output AI client.
type Analyzer struct {
	ai       aiClient
	validate resultValidator
}

// NewAnalyzer creates the Gemini-backed transcript analyzer.
func NewAnalyzer(ai aiClient, validate resultValidator) *Analyzer {
	return &Analyzer{ai: ai, validate: validate}
}

var subScoreSchema = &genai.Schema{Type: genai.TypeInteger, Description: "0 to 20"}

var resultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"scores": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"greeting":        subScoreSchema,
				"communication":   subScoreSchema,
				"problem_solving": subScoreSchema,
				"professionalism": subScoreSchema,
				"closing":         subScoreSchema,
				"total":           {Type: genai.TypeInteger, Description: "0 to 100"},
			},
			Required: []string{"greeting", "communication", "problem_solving", "professionalism", "closing", "total"},
		},
		"feedback": {Type: genai.TypeString},
		"outcome": {
			Type: genai.TypeString,
			Enum: []string{
				OutcomeAppointmentBooked, OutcomeSaleCompleted, OutcomeIssueResolved,
				OutcomeEscalated, OutcomeNoActionNeeded, OutcomeCustomerDropped,
				OutcomeNeedsReview,
			},
		},
		"confidence": {Type: genai.TypeInteger, Description: "0 to 100"},
		"reasoning":  {Type: genai.TypeString, Description: "One sentence."},
		"booking_details": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"customer": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":  {Type: genai.TypeString},
						"phone": {Type: genai.TypeString},
						"email": {Type: genai.TypeString},
					},
				},
				"vehicle": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"make":  {Type: genai.TypeString},
						"model": {Type: genai.TypeString},
						"year":  {Type: genai.TypeInteger},
					},
				},
				"service": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"requested": {Type: genai.TypeString},
						"notes":     {Type: genai.TypeString},
					},
				},
				"logistics": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"preferred_date": {Type: genai.TypeString},
						"preferred_time": {Type: genai.TypeString},
						"drop_off":       {Type: genai.TypeBoolean},
					},
				},
				"missing_critical_fields": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
			},
		},
		"response_times": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"avg_seconds": {Type: genai.TypeNumber},
				"max_seconds": {Type: genai.TypeNumber},
			},
		},
	},
	Required: []string{"scores", "feedback", "outcome", "confidence", "reasoning", "booking_details"},
}

// Analyze scores the transcript. Numeric fields are clamped into range
// before validation; a result that still fails validation is rejected whole.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (Result, error) {
	prompt := fmt.Sprintf(`You review calls for an auto service shop's quality program.
Score the agent on greeting, communication, problem solving, professionalism
and closing (0-20 each) and give a total (0-100). Classify the call outcome,
state your confidence (0-100) and give one sentence of reasoning. Extract any
booking details mentioned and list critical booking fields still missing.
Estimate the agent's average and worst response delay in seconds.

Transcript:
%s`, transcript)

	var res Result
	if err := a.ai.GenerateJSON(ctx, prompt, resultSchema, &res); err != nil {
		return Result{}, fmt.Errorf("analyze transcript: %w", err)
	}

	res.clamp()
	if err := a.validate.Struct(res); err != nil {
		return Result{}, fmt.Errorf("analysis failed validation: %w", err)
	}
	return res, nil
}

func (r *Result) clamp() {
	r.Scores.Greeting = clampInt(r.Scores.Greeting, 0, 20)
	r.Scores.Communication = clampInt(r.Scores.Communication, 0, 20)
	r.Scores.ProblemSolving = clampInt(r.Scores.ProblemSolving, 0, 20)
	r.Scores.Professionalism = clampInt(r.Scores.Professionalism, 0, 20)
	r.Scores.Closing = clampInt(r.Scores.Closing, 0, 20)
	r.Scores.Total = clampInt(r.Scores.Total, 0, 100)
	r.Confidence = clampInt(r.Confidence, 0, 100)
	if r.ResponseTimes.AvgSeconds < 0 {
		r.ResponseTimes.AvgSeconds = 0
	}
	if r.ResponseTimes.MaxSeconds < 0 {
		r.ResponseTimes.MaxSeconds = 0
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
