package followup

import (
	"strings"
	"testing"
)

func TestHasBookingIntent(t *testing.T) {
	cases := []struct {
		need, summary string
		want          bool
	}{
		{"an oil change", "", true},
		{"", "customer wants to schedule a visit", true},
		{"general question", "asked about opening hours", false},
		{"", "wants to bring it in tomorrow", true},
	}
	for _, tc := range cases {
		if got := HasBookingIntent(tc.need, tc.summary); got != tc.want {
			t.Errorf("HasBookingIntent(%q, %q) = %v, want %v", tc.need, tc.summary, got, tc.want)
		}
	}
}

func TestBookingFallbackRespectsLengthBound(t *testing.T) {
	longNeed := strings.Repeat("a very specific repair description ", 10)
	msg := BookingFallbackMessage("Joe's Auto", longNeed, DefaultBookingLink)
	if len(msg) > MaxMessageLen {
		t.Errorf("fallback message too long: %d", len(msg))
	}
	if !strings.Contains(msg, DefaultBookingLink) {
		t.Errorf("fallback missing link: %q", msg)
	}
}

func TestValidBookingMessage(t *testing.T) {
	link := "https://links.example/abc"
	if !ValidBookingMessage("Book here: "+link, link) {
		t.Error("valid message rejected")
	}
	if ValidBookingMessage("no link here", link) {
		t.Error("message without link accepted")
	}
	if ValidBookingMessage(strings.Repeat("x", 290)+" "+link, link) {
		t.Error("overlong message accepted")
	}
	if ValidBookingMessage("", link) {
		t.Error("empty message accepted")
	}
}
