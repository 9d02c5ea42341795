package domain

import "github.com/punchamoorthee/clawledger/internal/address"

// TransferRequest moves Amount from one named agent to another.
type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

// BatchPayment is one independent leg of a batch transfer.
// Agent and Vault are the caller's view of the recipient's addresses; the ledger
// recomputes them from Recipient and refuses the batch if they differ.
type BatchPayment struct {
	Recipient string          `json:"recipient"`
	Agent     address.Address `json:"agent"`
	Vault     address.Address `json:"vault"`
	Amount    uint64          `json:"amount"`
	Memo      string          `json:"memo,omitempty"`
}

// BatchRequest pays up to ten recipients from one sender.
type BatchRequest struct {
	From     string         `json:"from"`
	Payments []BatchPayment `json:"payments"`
}

// SplitRecipient receives ShareBps/10000 of a split total.
type SplitRecipient struct {
	Name     string          `json:"name"`
	Agent    address.Address `json:"agent"`
	Vault    address.Address `json:"vault"`
	ShareBps uint16          `json:"share_bps"`
}

// SplitRequest divides Total across Recipients proportionally.
type SplitRequest struct {
	From       string           `json:"from"`
	Total      uint64           `json:"total"`
	Recipients []SplitRecipient `json:"recipients"`
	Memo       string           `json:"memo,omitempty"`
}

// TransferFromRequest pulls Amount from Owner into Spender using an allowance.
type TransferFromRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
	Memo    string `json:"memo,omitempty"`
}

// InvoiceRequest asks Payer to pay Amount to Requester.
// ExpiresIn of 0 means the invoice never expires.
type InvoiceRequest struct {
	Requester string `json:"requester"`
	Payer     string `json:"payer"`
	Amount    uint64 `json:"amount"`
	Memo      string `json:"memo"`
	ExpiresIn int64  `json:"expires_in"`
}

// Resolution is the set of derived addresses for one agent name.
type Resolution struct {
	Name           string          `json:"name"`
	Agent          address.Address `json:"agent"`
	Vault          address.Address `json:"vault"`
	VaultAuthority address.Address `json:"vault_authority"`
	Registered     bool            `json:"registered"`
}

// DueSubscription is an active subscription whose next payment is due.
type DueSubscription struct {
	Subscription
	OverdueSeconds int64 `json:"overdue_seconds"`
}
