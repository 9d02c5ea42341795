package service

import (
	"github.com/punchamoorthee/clawledger/internal/amount"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

// applyCap charges amt against the agent's daily limit for the day containing now.
// The day window rolls over lazily on the first spend of a new day. On error the
// agent is left untouched.
func applyCap(a *domain.Agent, amt uint64, now int64) error {
	if a.DailyLimit == 0 {
		return nil
	}

	day := now / domain.SecondsPerDay
	spent := a.DailySpent
	if day != a.LastSpendDay {
		spent = 0
	}

	total, err := amount.Add(spent, amt)
	if err != nil {
		return err
	}
	if total > a.DailyLimit {
		return domain.ErrSpendingCapExceeded
	}

	a.DailySpent = total
	a.LastSpendDay = day
	return nil
}
