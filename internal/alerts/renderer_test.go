package alerts

import (
	"strings"
	"testing"

	"github.com/bissquit/soc-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeMarkdownV2_EveryReservedChar(t *testing.T) {
	const reserved = "\\_*[]()~`>#+-=|{}.!"
	for _, ch := range reserved {
		got := EscapeMarkdownV2(string(ch))
		assert.Equal(t, `\`+string(ch), got, "char %q", string(ch))
	}
}

func TestEscapeMarkdownV2_MixedText(t *testing.T) {
	assert.Equal(t, `brute\-force on host\.example \(3 attempts\)\!`,
		EscapeMarkdownV2("brute-force on host.example (3 attempts)!"))
	assert.Equal(t, "plain text", EscapeMarkdownV2("plain text"))
}

func TestClampSeverity(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-5, 0},
		{0, 0},
		{5, 5},
		{10, 10},
		{99, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampSeverity(tt.in))
	}
}

func TestRenderAlert_SeverityIcons(t *testing.T) {
	tests := []struct {
		name     string
		severity int
		icon     string
	}{
		{"below range clamps to min", -5, "🟢"},
		{"min", 0, "🟢"},
		{"default", 5, "🟡"},
		{"warning", 7, "🟠"},
		{"critical", 9, "🔴"},
		{"max", 10, "🔥"},
		{"above range clamps to max", 99, "🔥"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := RenderAlert(domain.Alert{Summary: "x", Severity: tt.severity})
			assert.True(t, strings.HasPrefix(text, tt.icon+" "), "got %q", text)
		})
	}
}

func TestRenderAlert_EscapesSummaryOnce(t *testing.T) {
	const reserved = "_*[]()~`>#+-=|{}.!"
	text := RenderAlert(domain.Alert{Summary: reserved, Severity: 5})

	body := strings.TrimPrefix(text, "🟡 ")
	for _, ch := range reserved {
		assert.Contains(t, body, `\`+string(ch))
		// exactly one backslash, no double escaping
		assert.NotContains(t, body, `\\`+string(ch))
	}
}

func TestRenderAlert_Tags(t *testing.T) {
	text := RenderAlert(domain.Alert{
		Summary:  "suspicious login",
		Severity: 6,
		Tags:     []string{"SSH", "brute-force"},
	})

	require.Contains(t, text, "\n")
	assert.Contains(t, text, `\#SSH \#brute\-force`)
}

func TestRenderAlert_DetailsBlockNotEscaped(t *testing.T) {
	text := RenderAlert(domain.Alert{
		Summary:  "rule fired",
		Severity: 8,
		Details: map[string]any{
			"rule.id": "100.2",
			"src_ip":  "10.0.0.1",
		},
	})

	// Template literal stays intact, not run through the escaper.
	assert.Contains(t, text, "\n*Details:*\n```json\n")
	assert.True(t, strings.HasSuffix(text, "\n```"))

	// Payload is serialized verbatim inside the literal block.
	assert.Contains(t, text, `"rule.id": "100.2"`)
	assert.Contains(t, text, `"src_ip": "10.0.0.1"`)
	assert.NotContains(t, text, `rule\.id`)
}

func TestRenderAlert_NoOptionalSections(t *testing.T) {
	text := RenderAlert(domain.Alert{Summary: "bare", Severity: 3})
	assert.Equal(t, "🟡 bare", text)
	assert.NotContains(t, text, "Details")
}

func TestSeverityLabel(t *testing.T) {
	tests := []struct {
		severity int
		want     string
	}{
		{0, "Low"},
		{2, "Low"},
		{3, "Guarded"},
		{5, "Guarded"},
		{6, "Elevated"},
		{7, "Elevated"},
		{8, "Critical"},
		{9, "Critical"},
		{10, "Maximum"},
		{99, "Maximum"},
		{-1, "Low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityLabel(tt.severity), "severity %d", tt.severity)
	}
}
