// Package notify is the best-effort notification sink. Every terminal
// workflow path produces exactly one human-readable message through it.
package notify

import (
	"context"

	"go.uber.org/zap"
)

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// LogNotifier writes notifications to the service log. Stand-in for a
// real channel (email, chat webhook); the workflow treats delivery as
// fire-and-forget either way.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, message string) error {
	n.logger.Info("notification", zap.String("message", message))
	return nil
}
