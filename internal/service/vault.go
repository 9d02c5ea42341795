package service

import (
	"context"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/amount"
	"github.com/punchamoorthee/clawledger/internal/custody"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

// vaultSigner is the ledger's own authority over one agent's vault. It is derived
// from the agent name, so the ledger can debit a vault after it has checked the
// controller, without ever holding the controller's credential.
type vaultSigner struct {
	agent     *domain.Agent
	authority address.Address
}

func signerFor(a *domain.Agent) vaultSigner {
	return vaultSigner{agent: a, authority: address.VaultAuthority(a.Name)}
}

func (s vaultSigner) pay(ctx context.Context, tx store.Tx, to *domain.Agent, amt uint64) error {
	return custody.Move(ctx, tx, s.agent.Vault, to.Vault, amt, s.authority)
}

func (s vaultSigner) withdraw(ctx context.Context, tx store.Tx, amt uint64) (*custody.Vault, error) {
	return custody.Debit(ctx, tx, s.agent.Vault, amt, s.authority)
}

// recordFlow updates the informational lifetime totals. They saturate rather than fail.
func recordFlow(from, to *domain.Agent, amt uint64) {
	if from != nil {
		from.TotalSent = amount.SaturatingAdd(from.TotalSent, amt)
	}
	if to != nil {
		to.TotalReceived = amount.SaturatingAdd(to.TotalReceived, amt)
	}
}
