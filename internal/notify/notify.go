// Package notify dispatches credential events to residents. Delivery (push,
// SMS) is an external concern; dispatchers here are fire-and-forget and their
// failures must never fail the operation that emitted the event.
package notify

import (
	"context"
	"log/slog"

	id "gatepass/pkg/domain"
)

// Event names emitted by the credential service.
const (
	EventCredentialCreated  = "credential.created"
	EventCredentialApproved = "credential.approved"
	EventCredentialRejected = "credential.rejected"
	EventCredentialScanned  = "credential.scanned"
)

// Dispatcher delivers an event to a resident. Implementations swallow or log
// delivery failures; callers never see them.
type Dispatcher interface {
	Notify(ctx context.Context, residentID id.ResidentID, event string, data map[string]string)
}

// LogDispatcher writes events to the structured log. It is the default when
// no broker is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher constructs a logging dispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Notify(ctx context.Context, residentID id.ResidentID, event string, data map[string]string) {
	attrs := []any{"resident_id", residentID.String(), "event", event}
	for k, v := range data {
		attrs = append(attrs, k, v)
	}
	d.logger.InfoContext(ctx, "notification dispatched", attrs...)
}

// NoopDispatcher discards events. Tests that do not care about notifications
// use it instead of asserting on log output.
type NoopDispatcher struct{}

func (NoopDispatcher) Notify(context.Context, id.ResidentID, string, map[string]string) {}
