package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/Behnamfe76/ticket-portal/internal/events"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
)

// StartAuditWorker registers handlers that log session lifecycle events.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	a := &auditor{logger: observability.OrNop(logger).Named("audit")}
	dispatcher.Subscribe(events.EventSessionChanged, a.handleSessionChanged)
	dispatcher.Subscribe(events.EventExchangeSettled, a.handleExchangeSettled)
	dispatcher.Subscribe(events.EventReadinessChanged, a.handleReadinessChanged)
}

type auditor struct {
	logger *zap.Logger
}

func (a *auditor) handleSessionChanged(_ context.Context, event events.Event) error {
	p, ok := event.Payload.(events.SessionChangedPayload)
	if !ok {
		return nil
	}
	a.logger.Info("SessionChanged",
		zap.String("scope", event.Scope),
		zap.String("from", string(p.OldState)),
		zap.String("to", string(p.NewState)),
		zap.String("user_id", p.UserID),
		zap.String("reason", p.Reason))
	return nil
}

func (a *auditor) handleExchangeSettled(_ context.Context, event events.Event) error {
	p, ok := event.Payload.(events.ExchangeSettledPayload)
	if !ok {
		return nil
	}
	a.logger.Info("ExchangeSettled",
		zap.String("scope", event.Scope),
		zap.Bool("succeeded", p.Succeeded),
		zap.Int("attempts", p.Attempts),
		zap.Duration("elapsed", p.Elapsed),
		zap.String("error", p.Error))
	return nil
}

func (a *auditor) handleReadinessChanged(_ context.Context, event events.Event) error {
	p, ok := event.Payload.(events.ReadinessChangedPayload)
	if !ok {
		return nil
	}
	a.logger.Info("ReadinessChanged", zap.String("endpoint", p.Endpoint), zap.Bool("ready", p.Ready))
	return nil
}
