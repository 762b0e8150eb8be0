// Package notify delivers operator notifications. Delivery is an external
// concern; the core only needs a sink.
package notify

import (
	"context"

	"github.com/migasfree/migasfree-backend/internal/logger"
)

// Notifier receives operator-facing messages (identity drift, unexpected
// syncs, new registrations).
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// LogNotifier writes notifications to the structured log. It stands in for
// the real delivery channel (mail, dashboard) in every deployment that has
// not configured one.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, message string) error {
	n.log.Info("notification", logger.String("message", message))
	return nil
}

// Recorder keeps notifications in memory for test assertions.
type Recorder struct {
	Messages []string
}

func (r *Recorder) Notify(_ context.Context, message string) error {
	r.Messages = append(r.Messages, message)
	return nil
}
