// Package custody holds vault balances and the single primitive that moves them.
//
// A debit is only accepted when the caller presents the vault's authority address,
// which is derived from the owning agent's name and never from its controller.
// Every function either applies its whole effect or returns an error with the
// transaction left as it was found.
package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/amount"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

// Vault is the balance held on behalf of one agent.
type Vault struct {
	Address   address.Address `json:"address"`
	Owner     string          `json:"owner"`
	Authority address.Address `json:"authority"`
	Balance   uint64          `json:"balance"`
}

// Open creates an empty vault for the agent name.
func Open(ctx context.Context, tx store.Tx, name string) (*Vault, error) {
	v := &Vault{
		Address:   address.Vault(name),
		Owner:     name,
		Authority: address.VaultAuthority(name),
	}
	if err := store.Create(ctx, tx, store.KindVault, v.Address, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Get loads a vault.
func Get(ctx context.Context, tx store.Tx, addr address.Address) (*Vault, error) {
	v, err := store.Load[Vault](ctx, tx, store.KindVault, addr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrVaultNotFound
	}
	return v, err
}

// Move transfers amount from one vault to another. signer must be the source
// vault's authority.
func Move(ctx context.Context, tx store.Tx, from, to address.Address, amt uint64, signer address.Address) error {
	if amt == 0 {
		return domain.ErrInvalidAmount
	}
	src, err := Get(ctx, tx, from)
	if err != nil {
		return err
	}
	if signer != src.Authority {
		return domain.ErrVaultAuthority
	}
	dst, err := Get(ctx, tx, to)
	if err != nil {
		return err
	}
	debited, err := amount.Sub(src.Balance, amt)
	if err != nil {
		return domain.ErrInsufficientFunds
	}
	if src.Address == dst.Address {
		return nil
	}
	credited, err := amount.Add(dst.Balance, amt)
	if err != nil {
		return err
	}

	src.Balance = debited
	dst.Balance = credited
	if err := store.Save(ctx, tx, store.KindVault, src.Address, src); err != nil {
		return fmt.Errorf("save source vault: %w", err)
	}
	if err := store.Save(ctx, tx, store.KindVault, dst.Address, dst); err != nil {
		return fmt.Errorf("save destination vault: %w", err)
	}
	return nil
}

// Credit adds funds arriving from outside the ledger.
func Credit(ctx context.Context, tx store.Tx, to address.Address, amt uint64) (*Vault, error) {
	if amt == 0 {
		return nil, domain.ErrInvalidAmount
	}
	v, err := Get(ctx, tx, to)
	if err != nil {
		return nil, err
	}
	if v.Balance, err = amount.Add(v.Balance, amt); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, tx, store.KindVault, v.Address, v); err != nil {
		return nil, fmt.Errorf("save vault: %w", err)
	}
	return v, nil
}

// Debit removes funds leaving the ledger. signer must be the vault's authority.
func Debit(ctx context.Context, tx store.Tx, from address.Address, amt uint64, signer address.Address) (*Vault, error) {
	if amt == 0 {
		return nil, domain.ErrInvalidAmount
	}
	v, err := Get(ctx, tx, from)
	if err != nil {
		return nil, err
	}
	if signer != v.Authority {
		return nil, domain.ErrVaultAuthority
	}
	if v.Balance, err = amount.Sub(v.Balance, amt); err != nil {
		return nil, domain.ErrInsufficientFunds
	}
	if err := store.Save(ctx, tx, store.KindVault, v.Address, v); err != nil {
		return nil, fmt.Errorf("save vault: %w", err)
	}
	return v, nil
}
