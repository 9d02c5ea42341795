package domain

import (
	"encoding/json"
	"fmt"

	"github.com/punchamoorthee/clawledger/internal/address"
)

const (
	MaxNameLen      = 32
	MaxMemoLen      = 128
	MaxBatchSize    = 10
	MinSplitSize    = 2
	MaxSplitSize    = 10
	MinInterval     = 60
	SecondsPerDay   = 86400
	UnitsPerDisplay = 1_000_000
)

// Identity is the caller asserted by the host for one request.
type Identity string

// Agent is a registered name bound to one vault.
type Agent struct {
	Name          string          `json:"name"`
	Address       address.Address `json:"address"`
	Authority     Identity        `json:"authority"`
	Vault         address.Address `json:"vault"`
	CreatedAt     int64           `json:"created_at"`
	TotalSent     uint64          `json:"total_sent"`
	TotalReceived uint64          `json:"total_received"`
	DailyLimit    uint64          `json:"daily_limit"`
	DailySpent    uint64          `json:"daily_spent"`
	LastSpendDay  int64           `json:"last_spend_day"`
}

// Allowance lets Spender pull up to Amount from Owner's vault.
// There is at most one per ordered (owner, spender) pair.
type Allowance struct {
	Address     address.Address `json:"address"`
	Owner       address.Address `json:"owner"`
	Spender     address.Address `json:"spender"`
	OwnerName   string          `json:"owner_name"`
	SpenderName string          `json:"spender_name"`
	Amount      uint64          `json:"amount"`
	TotalPulled uint64          `json:"total_pulled"`
	PullCount   uint64          `json:"pull_count"`
	Active      bool            `json:"active"`
	Authority   Identity        `json:"authority"`
}

// Subscription is a recurring payment from Sender to Receiver.
type Subscription struct {
	Address         address.Address `json:"address"`
	Sender          address.Address `json:"sender"`
	Receiver        address.Address `json:"receiver"`
	SenderName      string          `json:"sender_name"`
	ReceiverName    string          `json:"receiver_name"`
	Amount          uint64          `json:"amount"`
	IntervalSeconds int64           `json:"interval_seconds"`
	LastExecuted    int64           `json:"last_executed"`
	NextDue         int64           `json:"next_due"`
	Active          bool            `json:"active"`
	TotalPaid       uint64          `json:"total_paid"`
	ExecutionCount  uint64          `json:"execution_count"`
	Authority       Identity        `json:"authority"`
}

// InvoiceStatus is the state of a payment request.
type InvoiceStatus uint8

const (
	InvoicePending InvoiceStatus = iota
	InvoicePaid
	InvoiceRejected
	InvoiceCancelled
	InvoiceExpired
)

var invoiceStatusNames = map[InvoiceStatus]string{
	InvoicePending:   "pending",
	InvoicePaid:      "paid",
	InvoiceRejected:  "rejected",
	InvoiceCancelled: "cancelled",
	InvoiceExpired:   "expired",
}

func (s InvoiceStatus) String() string {
	if name, ok := invoiceStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition is allowed.
func (s InvoiceStatus) Terminal() bool {
	return s != InvoicePending
}

func (s InvoiceStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *InvoiceStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for status, n := range invoiceStatusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown invoice status %q", name)
}

// Invoice is a request from Requester for Payer to pay Amount.
type Invoice struct {
	ID             uint64          `json:"id"`
	Address        address.Address `json:"address"`
	Requester      address.Address `json:"requester"`
	Payer          address.Address `json:"payer"`
	RequesterName  string          `json:"requester_name"`
	PayerName      string          `json:"payer_name"`
	Amount         uint64          `json:"amount"`
	Memo           string          `json:"memo"`
	Status         InvoiceStatus   `json:"status"`
	CreatedAt      int64           `json:"created_at"`
	ExpiresAt      int64           `json:"expires_at"`
	PaidAt         int64           `json:"paid_at"`
	RefundedAmount uint64          `json:"refunded_amount"`
	Authority      Identity        `json:"authority"`
}

// Counter hands out invoice ids. It is created once at bootstrap.
type Counter struct {
	Count uint64 `json:"count"`
}

// Event is one committed mutation in the ledger history.
type Event struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// IdempotencyRecord stores the response of a completed request for exact replay.
type IdempotencyRecord struct {
	Key            string          `json:"key"`
	RequestHash    string          `json:"request_hash"`
	ResponseStatus int             `json:"response_status"`
	ResponseBody   json.RawMessage `json:"response_body"`
}
