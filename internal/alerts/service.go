package alerts

import (
	"context"
	"log/slog"

	"github.com/bissquit/soc-relay/internal/domain"
)

// ReasonNoSubscribers explains a non-forwarded ingest when nobody is
// opted in. "Nobody eligible" is a distinct reported state, not a
// silent success.
const ReasonNoSubscribers = "no_subscribed_recipients"

// IngestResult is the aggregated outcome of one ingest-and-dispatch call.
type IngestResult struct {
	Forwarded bool
	Reason    string
	Results   []DeliveryResult
}

// Service runs the ingest pipeline: render, gate, dispatch.
type Service struct {
	gate       *Gate
	dispatcher *Dispatcher
}

// NewService creates the ingest service.
func NewService(gate *Gate, dispatcher *Dispatcher) *Service {
	return &Service{gate: gate, dispatcher: dispatcher}
}

// Ingest renders the alert, consults the subscription gate and fans the
// message out to every eligible recipient. With nobody eligible it
// short-circuits before any delivery attempt.
func (s *Service) Ingest(ctx context.Context, alert domain.Alert) (IngestResult, error) {
	eligible, err := s.gate.EligibleRecipients(ctx)
	if err != nil {
		return IngestResult{}, err
	}

	if len(eligible) == 0 {
		slog.Info("alert not forwarded, no subscribed recipients",
			"summary", alert.Summary,
			"severity", alert.Severity,
		)
		recordIngest(false)
		return IngestResult{Forwarded: false, Reason: ReasonNoSubscribers}, nil
	}

	ids := make([]int64, len(eligible))
	for i, r := range eligible {
		ids[i] = r.ChatID
	}

	slog.Info("forwarding alert",
		"summary", alert.Summary,
		"severity", ClampSeverity(alert.Severity),
		"severity_label", SeverityLabel(alert.Severity),
		"recipients", len(ids),
	)

	results := s.dispatcher.Dispatch(ctx, RenderAlert(alert), ids)
	recordIngest(true)

	return IngestResult{Forwarded: true, Results: results}, nil
}
