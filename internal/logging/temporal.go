package logging

import (
	"go.uber.org/zap"
)

// TemporalAdapter implements the Temporal SDK's log.Logger on top of
// zap, so client and worker logs land in the same stream as the rest of
// the service.
type TemporalAdapter struct {
	sugar *zap.SugaredLogger
}

func NewTemporalAdapter(logger *zap.Logger) *TemporalAdapter {
	return &TemporalAdapter{
		sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

func (a *TemporalAdapter) Debug(msg string, keyvals ...interface{}) { a.sugar.Debugw(msg, keyvals...) }
func (a *TemporalAdapter) Info(msg string, keyvals ...interface{})  { a.sugar.Infow(msg, keyvals...) }
func (a *TemporalAdapter) Warn(msg string, keyvals ...interface{})  { a.sugar.Warnw(msg, keyvals...) }
func (a *TemporalAdapter) Error(msg string, keyvals ...interface{}) { a.sugar.Errorw(msg, keyvals...) }
