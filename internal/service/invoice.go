package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/amount"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

const refundMemoCut = 120

func loadInvoice(ctx context.Context, tx store.Tx, id uint64) (*domain.Invoice, error) {
	inv, err := store.Load[domain.Invoice](ctx, tx, store.KindInvoice, address.Invoice(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, err
}

// InitInvoiceCounter creates the global invoice counter. It can only run once.
func (l *Ledger) InitInvoiceCounter(ctx context.Context) (*domain.Counter, error) {
	counter := &domain.Counter{}
	err := l.exec(ctx, "init_counter", func(ctx context.Context, tx store.Tx, now int64) error {
		err := store.Create(ctx, tx, store.KindCounter, address.Counter(), counter)
		if errors.Is(err, store.ErrExists) {
			return domain.ErrCounterAlreadyInitialized
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("invoice counter initialized")
	return counter, nil
}

// nextInvoiceID takes the current counter value and advances it.
func nextInvoiceID(ctx context.Context, tx store.Tx) (uint64, error) {
	counter, err := store.Load[domain.Counter](ctx, tx, store.KindCounter, address.Counter())
	if errors.Is(err, store.ErrNotFound) {
		return 0, domain.ErrCounterNotInitialized
	}
	if err != nil {
		return 0, err
	}
	id := counter.Count
	if counter.Count, err = amount.Add(counter.Count, 1); err != nil {
		return 0, err
	}
	if err := store.Save(ctx, tx, store.KindCounter, address.Counter(), counter); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateInvoice asks req.Payer to pay req.Amount to req.Requester.
func (l *Ledger) CreateInvoice(ctx context.Context, caller domain.Identity, req domain.InvoiceRequest) (*domain.Invoice, error) {
	if req.Amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	if err := validateMemo(req.Memo); err != nil {
		return nil, err
	}
	if req.ExpiresIn < 0 {
		return nil, domain.ErrInvalidExpiry
	}

	var inv *domain.Invoice
	err := l.exec(ctx, "create_invoice", func(ctx context.Context, tx store.Tx, now int64) error {
		requester, err := loadAgent(ctx, tx, req.Requester)
		if err != nil {
			return err
		}
		if err := authorize(requester, caller); err != nil {
			return err
		}
		payer, err := loadAgent(ctx, tx, req.Payer)
		if err != nil {
			return err
		}
		if requester.Address == payer.Address {
			return domain.ErrCannotInvoiceSelf
		}

		id, err := nextInvoiceID(ctx, tx)
		if err != nil {
			return err
		}
		inv = &domain.Invoice{
			ID:            id,
			Address:       address.Invoice(id),
			Requester:     requester.Address,
			Payer:         payer.Address,
			RequesterName: requester.Name,
			PayerName:     payer.Name,
			Amount:        req.Amount,
			Memo:          req.Memo,
			Status:        domain.InvoicePending,
			CreatedAt:     now,
			Authority:     caller,
		}
		if req.ExpiresIn > 0 {
			if inv.ExpiresAt, err = amount.AddInt64(now, req.ExpiresIn); err != nil {
				return err
			}
		}
		if err := store.Create(ctx, tx, store.KindInvoice, inv.Address, inv); err != nil {
			return fmt.Errorf("create invoice %d: %w", id, err)
		}

		return store.Emit(ctx, tx, domain.EventInvoiceCreated, now, domain.InvoiceCreatedEvent{
			InvoiceID: id,
			Requester: inv.RequesterName,
			Payer:     inv.PayerName,
			Amount:    inv.Amount,
			Memo:      inv.Memo,
			ExpiresAt: inv.ExpiresAt,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("invoice created",
		zap.Uint64("invoice_id", inv.ID),
		zap.String("requester", inv.RequesterName),
		zap.String("payer", inv.PayerName),
		zap.Uint64("amount", inv.Amount),
	)
	return inv, nil
}

// pendingForPayer loads a pending invoice and checks that payer is the one it names
// and that caller controls payer.
func pendingForPayer(ctx context.Context, agents *agentSet, tx store.Tx, caller domain.Identity, id uint64, payer string) (*domain.Invoice, *domain.Agent, error) {
	inv, err := loadInvoice(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if inv.Status != domain.InvoicePending {
		return nil, nil, domain.ErrInvoiceNotPending
	}
	if inv.PayerName != payer || inv.Payer != address.Agent(payer) {
		return nil, nil, domain.ErrInvoiceMismatch
	}
	payerAgent, err := agents.get(ctx, payer)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(payerAgent, caller); err != nil {
		return nil, nil, err
	}
	return inv, payerAgent, nil
}

// PayInvoice settles a pending invoice from the payer's vault. A past-due invoice is
// refused and left pending.
func (l *Ledger) PayInvoice(ctx context.Context, caller domain.Identity, id uint64, payer string) (*domain.Invoice, error) {
	var inv *domain.Invoice
	err := l.exec(ctx, "pay_invoice", func(ctx context.Context, tx store.Tx, now int64) error {
		agents := newAgentSet(tx)
		var (
			payerAgent *domain.Agent
			err        error
		)
		if inv, payerAgent, err = pendingForPayer(ctx, agents, tx, caller, id, payer); err != nil {
			return err
		}
		if inv.ExpiresAt > 0 && now > inv.ExpiresAt {
			return domain.ErrInvoiceExpired
		}
		requester, err := agents.get(ctx, inv.RequesterName)
		if err != nil {
			return err
		}

		if err := applyCap(payerAgent, inv.Amount, now); err != nil {
			return err
		}
		if err := agents.save(ctx); err != nil {
			return err
		}
		if err := signerFor(payerAgent).pay(ctx, tx, requester, inv.Amount); err != nil {
			return err
		}
		recordFlow(payerAgent, requester, inv.Amount)
		if err := agents.save(ctx); err != nil {
			return err
		}

		inv.Status = domain.InvoicePaid
		inv.PaidAt = now
		if err := store.Save(ctx, tx, store.KindInvoice, inv.Address, inv); err != nil {
			return err
		}
		return store.Emit(ctx, tx, domain.EventInvoicePaid, now, domain.InvoiceResolvedEvent{
			InvoiceID: inv.ID,
			Requester: inv.RequesterName,
			Payer:     inv.PayerName,
			Amount:    inv.Amount,
			Memo:      inv.Memo,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}

	moved("pay_invoice", inv.Amount)
	l.log.Info("invoice paid", zap.Uint64("invoice_id", id), zap.String("payer", payer), zap.Uint64("amount", inv.Amount))
	return inv, nil
}

// RejectInvoice declines a pending invoice on behalf of its payer.
func (l *Ledger) RejectInvoice(ctx context.Context, caller domain.Identity, id uint64, payer string) (*domain.Invoice, error) {
	var inv *domain.Invoice
	err := l.exec(ctx, "reject_invoice", func(ctx context.Context, tx store.Tx, now int64) error {
		var err error
		if inv, _, err = pendingForPayer(ctx, newAgentSet(tx), tx, caller, id, payer); err != nil {
			return err
		}
		inv.Status = domain.InvoiceRejected
		if err := store.Save(ctx, tx, store.KindInvoice, inv.Address, inv); err != nil {
			return err
		}
		return store.Emit(ctx, tx, domain.EventInvoiceRejected, now, domain.InvoiceResolvedEvent{
			InvoiceID: inv.ID,
			Requester: inv.RequesterName,
			Payer:     inv.PayerName,
			Amount:    inv.Amount,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("invoice rejected", zap.Uint64("invoice_id", id), zap.String("payer", payer))
	return inv, nil
}

// CancelInvoice withdraws a pending invoice. Only the identity that created it may.
func (l *Ledger) CancelInvoice(ctx context.Context, caller domain.Identity, id uint64) (*domain.Invoice, error) {
	var inv *domain.Invoice
	err := l.exec(ctx, "cancel_invoice", func(ctx context.Context, tx store.Tx, now int64) error {
		var err error
		if inv, err = loadInvoice(ctx, tx, id); err != nil {
			return err
		}
		if inv.Status != domain.InvoicePending {
			return domain.ErrInvoiceNotPending
		}
		if inv.Authority != caller {
			return domain.ErrUnauthorized
		}
		inv.Status = domain.InvoiceCancelled
		if err := store.Save(ctx, tx, store.KindInvoice, inv.Address, inv); err != nil {
			return err
		}
		return store.Emit(ctx, tx, domain.EventInvoiceCancelled, now, domain.InvoiceResolvedEvent{
			InvoiceID: inv.ID,
			Requester: inv.RequesterName,
			Payer:     inv.PayerName,
			Amount:    inv.Amount,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("invoice cancelled", zap.Uint64("invoice_id", id))
	return inv, nil
}

func refundMemo(id uint64, reason string) string {
	memo := fmt.Sprintf("Refund (ref: invoice#%d)", id)
	if reason != "" {
		memo = fmt.Sprintf("Refund: %s (ref: invoice#%d)", reason, id)
	}
	if len(memo) > domain.MaxMemoLen {
		cut := refundMemoCut
		for cut > 0 && !utf8.RuneStart(memo[cut]) {
			cut--
		}
		memo = memo[:cut] + "..."
	}
	return memo
}

// RefundInvoice returns part or all of a paid invoice from requester to payer.
// amt 0 refunds whatever has not been refunded yet.
func (l *Ledger) RefundInvoice(ctx context.Context, caller domain.Identity, id uint64, amt uint64, reason string) (*domain.InvoiceRefundedEvent, error) {
	var event *domain.InvoiceRefundedEvent
	err := l.exec(ctx, "refund_invoice", func(ctx context.Context, tx store.Tx, now int64) error {
		inv, err := loadInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		if inv.Status != domain.InvoicePaid {
			return domain.ErrInvoiceNotPaid
		}

		agents := newAgentSet(tx)
		requester, err := agents.get(ctx, inv.RequesterName)
		if err != nil {
			return err
		}
		if err := authorize(requester, caller); err != nil {
			return err
		}
		payer, err := agents.get(ctx, inv.PayerName)
		if err != nil {
			return err
		}
		if requester.Address != inv.Requester || payer.Address != inv.Payer {
			return domain.ErrInvoiceMismatch
		}

		refundable, err := amount.Sub(inv.Amount, inv.RefundedAmount)
		if err != nil {
			return domain.ErrRefundExceedsPayment
		}
		if amt == 0 {
			amt = refundable
		}
		if amt == 0 || amt > refundable {
			return domain.ErrRefundExceedsPayment
		}

		if err := applyCap(requester, amt, now); err != nil {
			return err
		}
		if err := agents.save(ctx); err != nil {
			return err
		}
		if err := signerFor(requester).pay(ctx, tx, payer, amt); err != nil {
			return err
		}
		recordFlow(requester, payer, amt)
		if err := agents.save(ctx); err != nil {
			return err
		}

		inv.RefundedAmount += amt
		if err := store.Save(ctx, tx, store.KindInvoice, inv.Address, inv); err != nil {
			return err
		}

		event = &domain.InvoiceRefundedEvent{
			InvoiceID:      inv.ID,
			Requester:      inv.RequesterName,
			Payer:          inv.PayerName,
			Amount:         amt,
			RefundedAmount: inv.RefundedAmount,
			Memo:           refundMemo(inv.ID, reason),
			Timestamp:      now,
		}
		return store.Emit(ctx, tx, domain.EventInvoiceRefunded, now, event)
	})
	if err != nil {
		return nil, err
	}

	moved("refund_invoice", event.Amount)
	l.log.Info("invoice refunded",
		zap.Uint64("invoice_id", id),
		zap.Uint64("amount", event.Amount),
		zap.Uint64("refunded_total", event.RefundedAmount),
	)
	return event, nil
}
