package domain

// Alert severity bounds. Values outside the range are clamped by the
// renderer; missing severity defaults to DefaultSeverity.
const (
	MinSeverity     = 0
	MaxSeverity     = 10
	DefaultSeverity = 5
)

// DefaultSummary is used when a submission carries no summary.
const DefaultSummary = "Alert"

// Alert is a transient inbound submission. Alerts have no identity and
// no persistence; they live for one ingest-and-dispatch call.
type Alert struct {
	Summary  string
	Severity int
	Details  map[string]any
	Tags     []string
}

// NewAlert builds an Alert from raw submission fields, applying the
// documented defaults. Severity is passed through unclamped; clamping
// belongs to the renderer.
func NewAlert(summary string, severity *int, details map[string]any, tags []string) Alert {
	a := Alert{
		Summary:  summary,
		Severity: DefaultSeverity,
		Details:  details,
		Tags:     tags,
	}
	if a.Summary == "" {
		a.Summary = DefaultSummary
	}
	if severity != nil {
		a.Severity = *severity
	}
	return a
}
