// Package payment holds the charge collaborator. The production
// processor is a simulation: there is no real payment rail behind this
// service, so a charge is a logged, always-successful step.
package payment

import (
	"context"

	"go.uber.org/zap"
)

// Processor charges the customer for an order. A charge failure is
// fatal to the remaining workflow steps; there is no partial success.
type Processor interface {
	Charge(ctx context.Context, requestID, itemName string, quantity int, amount float64) error
}

type SimulatedProcessor struct {
	logger *zap.Logger
}

func NewSimulatedProcessor(logger *zap.Logger) *SimulatedProcessor {
	return &SimulatedProcessor{logger: logger}
}

func (p *SimulatedProcessor) Charge(_ context.Context, requestID, itemName string, quantity int, amount float64) error {
	p.logger.Info("processed payment",
		zap.String("request", requestID),
		zap.String("item", itemName),
		zap.Int("quantity", quantity),
		zap.Float64("amount", amount))
	return nil
}
