package conversation

import (
	"context"
	"log/slog"

	"github.com/MikeSquared-Agency/chatline/internal/ephemeral"
	"github.com/MikeSquared-Agency/chatline/internal/hermes"
)

// SessionNotifier publishes temporary session endings. A nil publisher
// disables it.
func SessionNotifier(pub Publisher, logger *slog.Logger) ephemeral.Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return ephemeral.NotifierFunc(func(_ context.Context, ev ephemeral.Ended) {
		if pub == nil {
			return
		}
		if err := pub.Publish(hermes.SubjectSessionEnded, hermes.SessionEnded{
			Owner:            ev.Owner,
			Reason:           string(ev.Reason),
			RemainingSeconds: ev.Remaining,
			EndedAt:          ev.At.UTC(),
		}); err != nil {
			logger.Warn("failed to publish session end", "error", err)
		}
	})
}
