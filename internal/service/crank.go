package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

// CrankResult reports what one crank pass did.
type CrankResult struct {
	Executed []domain.SubscriptionExecutedEvent `json:"executed"`
	Failed   []CrankFailure                     `json:"failed"`
}

// CrankFailure is a due subscription whose execution was refused.
type CrankFailure struct {
	Subscription address.Address `json:"subscription"`
	Sender       string          `json:"sender"`
	Receiver     string          `json:"receiver"`
	Error        string          `json:"error"`
}

// Crank executes every subscription due now, each in its own transaction. A refused
// execution (cap, funds) is recorded and the pass continues with the next one.
func (l *Ledger) Crank(ctx context.Context) (*CrankResult, error) {
	due, err := l.DueSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	res := &CrankResult{}
	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		event, err := l.ExecuteSubscription(ctx, d.Address)
		if err != nil {
			res.Failed = append(res.Failed, CrankFailure{
				Subscription: d.Address,
				Sender:       d.SenderName,
				Receiver:     d.ReceiverName,
				Error:        err.Error(),
			})
			continue
		}
		res.Executed = append(res.Executed, *event)
	}

	if len(due) > 0 {
		l.log.Info("crank pass finished",
			zap.Int("due", len(due)),
			zap.Int("executed", len(res.Executed)),
			zap.Int("failed", len(res.Failed)),
		)
	}
	return res, nil
}

// RunCrank cranks every interval until ctx is done.
func (l *Ledger) RunCrank(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := l.Crank(ctx); err != nil && ctx.Err() == nil {
				l.log.Error("crank pass failed", zap.Error(err))
			}
		}
	}
}
