package agent

import (
	"fmt"
	"strings"

	"github.com/fairwaylabs/caddie/internal/call"
)

// buildSystemPrompt assembles the receptionist persona for one call. The
// caller context is an immutable snapshot taken at session start, so the
// prompt is stable for the whole call.
func buildSystemPrompt(caller call.CallerContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the AI receptionist for %s", caller.CourseName)
	if caller.CourseLocation != "" {
		fmt.Fprintf(&b, ", located in %s", caller.CourseLocation)
	}
	b.WriteString(".\n\n")

	b.WriteString("Your role is to assist callers with:\n")
	b.WriteString("- Booking tee times\n")
	b.WriteString("- Answering questions about pricing, hours, and amenities\n")
	b.WriteString("- Handling cancellations and changes\n\n")

	if caller.PhoneNumber != "" {
		fmt.Fprintf(&b, "Caller phone: %s\n", caller.PhoneNumber)
	}
	if caller.HistorySummary != "" {
		b.WriteString("\nPrevious conversations with this caller:\n")
		b.WriteString(caller.HistorySummary)
		b.WriteString("\n")
	}

	b.WriteString("\nInstructions:\n")
	b.WriteString("1. Be warm, professional, and helpful.\n")
	b.WriteString("2. Reference previous conversations naturally when relevant.\n")
	b.WriteString("3. For bookings, collect: date, time, number of players, cart preference.\n")
	b.WriteString("4. If you can't help with something, offer to transfer to the pro shop.\n")
	b.WriteString("5. Keep responses concise, two or three sentences at most; this is a live voice call.\n")
	b.WriteString("6. Use natural, conversational language, never robotic.\n")

	return b.String()
}
