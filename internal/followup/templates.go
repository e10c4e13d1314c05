package followup

import (
	"fmt"
	"strings"
)

// MaxMessageLen bounds every outbound follow-up SMS.
const MaxMessageLen = 300

// DefaultBookingLink is the platform-wide booking page used when a tenant
// has neither a tracked link nor a configured booking URL.
const DefaultBookingLink = "https://book.callops.app"

// bookingKeywords signal booking intent in the need phrase or summary.
var bookingKeywords = []string{
	"appointment", "book", "booking", "schedule", "reschedule",
	"come in", "bring it in", "drop off", "availability", "available",
	"oil change", "tire rotation", "inspection", "service visit",
}

// HasBookingIntent scans the need phrase and summary for booking keywords.
func HasBookingIntent(need, summary string) bool {
	haystack := strings.ToLower(need + " " + summary)
	for _, kw := range bookingKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// ApologyMessage is used when the call was unsuccessful or cut short.
func ApologyMessage(businessName string) string {
	return fmt.Sprintf(
		"Hi, this is %s. Sorry we got cut off! Text us back here and we'll pick up right where we left off.",
		businessName)
}

// ThankYouMessage is the generic follow-up when no booking intent was found.
func ThankYouMessage(businessName string) string {
	return fmt.Sprintf(
		"Thanks for calling %s! If there's anything else we can help with, just text us back here.",
		businessName)
}

// BookingFallbackMessage is the deterministic booking follow-up used when
// generated text fails validation.
func BookingFallbackMessage(businessName, need, link string) string {
	need = strings.TrimSpace(need)
	if need == "" {
		return fmt.Sprintf("Thanks for calling %s! You can book your visit here: %s", businessName, link)
	}
	msg := fmt.Sprintf("Thanks for calling %s about %s! You can book your visit here: %s", businessName, need, link)
	if len(msg) > MaxMessageLen {
		return fmt.Sprintf("Thanks for calling %s! You can book your visit here: %s", businessName, link)
	}
	return msg
}

// ValidBookingMessage checks that generated text carries the link and
// respects the length bound.
func ValidBookingMessage(msg, link string) bool {
	msg = strings.TrimSpace(msg)
	return msg != "" && len(msg) <= MaxMessageLen && strings.Contains(msg, link)
}
