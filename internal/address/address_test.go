package address

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	assert.Equal(t, Agent("alice"), Agent("alice"))
	assert.Equal(t, Vault("alice"), Vault("alice"))
	assert.Equal(t, Invoice(7), Invoice(7))
	assert.Equal(t, Counter(), Counter())
}

func TestDeriveSeparatesNamespaces(t *testing.T) {
	seen := map[Address]string{}
	for ns, addr := range map[string]Address{
		"agent":           Agent("alice"),
		"vault":           Vault("alice"),
		"vault_authority": VaultAuthority("alice"),
		"other_agent":     Agent("bob"),
		"allowance":       Allowance(Agent("alice"), Agent("bob")),
		"allowance_rev":   Allowance(Agent("bob"), Agent("alice")),
		"subscription":    Subscription(Agent("alice"), Agent("bob")),
		"invoice_0":       Invoice(0),
		"invoice_1":       Invoice(1),
		"counter":         Counter(),
	} {
		prev, dup := seen[addr]
		require.False(t, dup, "%s collides with %s", ns, prev)
		seen[addr] = ns
		assert.False(t, addr.IsZero())
	}
}

func TestAddressTextRoundTrip(t *testing.T) {
	a := Vault("carol")

	raw, err := json.Marshal(map[string]Address{"vault": a})
	require.NoError(t, err)

	var out map[string]Address
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, a, out["vault"])

	_, err = Parse("not-an-address")
	assert.Error(t, err)
}

func TestInvoiceKeyIsLittleEndianID(t *testing.T) {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], 258)
	assert.Equal(t, []byte{0x02, 0x01, 0, 0, 0, 0, 0, 0}, key[:])
	assert.Equal(t, Derive(NamespaceInvoice, key[:]), Invoice(258))
}
