// Package address derives stable storage locations for ledger records.
//
// Every record lives at an address computed from a namespace tag and key bytes, so
// "the vault for agent X" is found without an index lookup. Addresses are name-based
// UUIDs (RFC 4122 version 5) under a per-namespace UUID, which keeps derivation pure
// and distinct namespaces from ever sharing an address for the same key.
package address

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Namespace tags. Changing any of these moves every record of that kind.
const (
	NamespaceAgent          = "agent"
	NamespaceVault          = "vault"
	NamespaceVaultAuthority = "vault_authority"
	NamespaceAllowance      = "allowance"
	NamespaceSubscription   = "subscription"
	NamespaceInvoice        = "invoice"
	NamespaceCounter        = "invoice_counter"
)

var root = uuid.MustParse("5f0c4a8e-2a8b-4d0e-9b4e-6c1a3d7e9f21")

// Address is the derived location of a record.
type Address uuid.UUID

// Zero is the empty address.
var Zero Address

// Derive maps (namespace, key) to an address.
func Derive(namespace string, key []byte) Address {
	ns := uuid.NewSHA1(root, []byte(namespace))
	return Address(uuid.NewSHA1(ns, key))
}

// Agent is the address of the registry record for name.
func Agent(name string) Address {
	return Derive(NamespaceAgent, []byte(name))
}

// Vault is the address of the vault bound to name.
func Vault(name string) Address {
	return Derive(NamespaceVault, []byte(name))
}

// VaultAuthority is the signer allowed to debit the vault bound to name.
func VaultAuthority(name string) Address {
	return Derive(NamespaceVaultAuthority, []byte(name))
}

// Allowance is the address of the owner -> spender delegation.
func Allowance(owner, spender Address) Address {
	return Derive(NamespaceAllowance, pair(owner, spender))
}

// Subscription is the address of the sender -> receiver recurring payment.
func Subscription(sender, receiver Address) Address {
	return Derive(NamespaceSubscription, pair(sender, receiver))
}

// Invoice is the address of invoice id.
func Invoice(id uint64) Address {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], id)
	return Derive(NamespaceInvoice, key[:])
}

// Counter is the address of the global invoice counter.
func Counter() Address {
	return Derive(NamespaceCounter, nil)
}

func pair(a, b Address) []byte {
	key := make([]byte, 0, 32)
	key = append(key, a[:]...)
	return append(key, b[:]...)
}

// Parse reads an address in its canonical string form.
func Parse(s string) (Address, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(u), nil
}

func (a Address) String() string {
	return uuid.UUID(a).String()
}

// IsZero reports whether a is the empty address.
func (a Address) IsZero() bool {
	return a == Zero
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
