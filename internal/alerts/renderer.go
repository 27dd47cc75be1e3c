// Package alerts implements the alert ingest pipeline: rendering,
// subscription gating and concurrent fan-out delivery.
package alerts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bissquit/soc-relay/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// severityIcons maps clamped severity 0..10 to a visual indicator.
var severityIcons = [domain.MaxSeverity + 1]string{
	"🟢", "🟢", "🟢", "🟡", "🟡", "🟡", "🟠", "🟠", "🔴", "🔴", "🔥",
}

// markdownV2Escaper escapes every character reserved by Telegram
// MarkdownV2. Applied to user-supplied fragments only, never to the
// surrounding template literals, which are authored already safe.
var markdownV2Escaper = func() *strings.Replacer {
	const reserved = "\\_*[]()~`>#+-=|{}.!"
	pairs := make([]string, 0, len(reserved)*2)
	for _, ch := range reserved {
		pairs = append(pairs, string(ch), `\`+string(ch))
	}
	return strings.NewReplacer(pairs...)
}()

// EscapeMarkdownV2 escapes a dynamic text fragment for embedding into a
// MarkdownV2 message.
func EscapeMarkdownV2(text string) string {
	return markdownV2Escaper.Replace(text)
}

// ClampSeverity pulls a severity into [0,10].
func ClampSeverity(severity int) int {
	if severity < domain.MinSeverity {
		return domain.MinSeverity
	}
	if severity > domain.MaxSeverity {
		return domain.MaxSeverity
	}
	return severity
}

var titleCaser = cases.Title(language.English)

// SeverityLabel names a severity band for logs and state listings.
func SeverityLabel(severity int) string {
	var label string
	switch sev := ClampSeverity(severity); {
	case sev <= 2:
		label = "low"
	case sev <= 5:
		label = "guarded"
	case sev <= 7:
		label = "elevated"
	case sev <= 9:
		label = "critical"
	default:
		label = "maximum"
	}
	return titleCaser.String(label)
}

// RenderAlert formats an alert as a MarkdownV2 message. It never fails:
// out-of-range severity is clamped and optional fields degrade to
// nothing. User-supplied text is escaped per fragment; the structured
// details payload goes into a fenced code block where MarkdownV2 does
// not interpret markup, so its contents stay verbatim.
func RenderAlert(a domain.Alert) string {
	var b strings.Builder

	b.WriteString(severityIcons[ClampSeverity(a.Severity)])
	b.WriteString(" ")
	b.WriteString(EscapeMarkdownV2(a.Summary))

	if len(a.Tags) > 0 {
		tokens := make([]string, len(a.Tags))
		for i, tag := range a.Tags {
			tokens[i] = EscapeMarkdownV2("#" + tag)
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(tokens, " "))
	}

	if a.Details != nil {
		b.WriteString("\n*Details:*\n```json\n")
		b.WriteString(prettyDetails(a.Details))
		b.WriteString("\n```")
	}

	return b.String()
}

func prettyDetails(details map[string]any) string {
	pretty, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		// Details came from a decoded JSON body, so this should not
		// happen; degrade rather than fail the render.
		return fmt.Sprintf("%v", details)
	}
	return string(pretty)
}
