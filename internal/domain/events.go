package domain

// Event types, one per kind of committed mutation.
const (
	EventAgentRegistered       = "agent.registered"
	EventDeposited             = "vault.deposited"
	EventWithdrawn             = "vault.withdrawn"
	EventDailyLimitSet         = "agent.limit_set"
	EventTransfer              = "transfer.completed"
	EventBatchTransfer         = "transfer.batch"
	EventSplitTransfer         = "transfer.split"
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionExecuted  = "subscription.executed"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventAllowanceApproved     = "allowance.approved"
	EventAllowancePulled       = "allowance.pulled"
	EventAllowanceRevoked      = "allowance.revoked"
	EventAllowanceIncreased    = "allowance.increased"
	EventInvoiceCreated        = "invoice.created"
	EventInvoicePaid           = "invoice.paid"
	EventInvoiceRejected       = "invoice.rejected"
	EventInvoiceCancelled      = "invoice.cancelled"
	EventInvoiceRefunded       = "invoice.refunded"
)

type AgentRegisteredEvent struct {
	Name      string   `json:"name"`
	Authority Identity `json:"authority"`
	Vault     string   `json:"vault"`
	Timestamp int64    `json:"timestamp"`
}

type DepositEvent struct {
	Agent     string `json:"agent"`
	Source    string `json:"source"`
	Amount    uint64 `json:"amount"`
	Balance   uint64 `json:"balance"`
	Timestamp int64  `json:"timestamp"`
}

type WithdrawEvent struct {
	Agent       string `json:"agent"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
	Balance     uint64 `json:"balance"`
	Timestamp   int64  `json:"timestamp"`
}

type DailyLimitSetEvent struct {
	Agent     string `json:"agent"`
	Limit     uint64 `json:"limit"`
	Timestamp int64  `json:"timestamp"`
}

type TransferEvent struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Amount    uint64 `json:"amount"`
	Memo      string `json:"memo"`
	TotalSent uint64 `json:"total_sent"`
	Timestamp int64  `json:"timestamp"`
}

type BatchTransferEvent struct {
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Amounts    []uint64 `json:"amounts"`
	Memos      []string `json:"memos"`
	Total      uint64   `json:"total"`
	TotalSent  uint64   `json:"total_sent"`
	Timestamp  int64    `json:"timestamp"`
}

type SplitTransferEvent struct {
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Amounts    []uint64 `json:"amounts"`
	Total      uint64   `json:"total"`
	Memo       string   `json:"memo"`
	TotalSent  uint64   `json:"total_sent"`
	Timestamp  int64    `json:"timestamp"`
}

type SubscriptionCreatedEvent struct {
	Sender          string `json:"sender"`
	Receiver        string `json:"receiver"`
	Amount          uint64 `json:"amount"`
	IntervalSeconds int64  `json:"interval_seconds"`
	NextDue         int64  `json:"next_due"`
	Timestamp       int64  `json:"timestamp"`
}

type SubscriptionExecutedEvent struct {
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	Amount         uint64 `json:"amount"`
	Memo           string `json:"memo"`
	ExecutionCount uint64 `json:"execution_count"`
	TotalPaid      uint64 `json:"total_paid"`
	NextDue        int64  `json:"next_due"`
	Timestamp      int64  `json:"timestamp"`
}

type SubscriptionCancelledEvent struct {
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	TotalPaid      uint64 `json:"total_paid"`
	ExecutionCount uint64 `json:"execution_count"`
	Timestamp      int64  `json:"timestamp"`
}

type AllowanceApprovedEvent struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Amount    uint64 `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

type TransferFromEvent struct {
	Owner              string `json:"owner"`
	Spender            string `json:"spender"`
	Amount             uint64 `json:"amount"`
	Memo               string `json:"memo"`
	RemainingAllowance uint64 `json:"remaining_allowance"`
	PullNumber         uint64 `json:"pull_number"`
	Timestamp          int64  `json:"timestamp"`
}

type AllowanceRevokedEvent struct {
	Owner       string `json:"owner"`
	Spender     string `json:"spender"`
	TotalPulled uint64 `json:"total_pulled"`
	PullCount   uint64 `json:"pull_count"`
	Timestamp   int64  `json:"timestamp"`
}

type AllowanceModifiedEvent struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	NewAmount uint64 `json:"new_amount"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

type InvoiceCreatedEvent struct {
	InvoiceID uint64 `json:"invoice_id"`
	Requester string `json:"requester"`
	Payer     string `json:"payer"`
	Amount    uint64 `json:"amount"`
	Memo      string `json:"memo"`
	ExpiresAt int64  `json:"expires_at"`
	Timestamp int64  `json:"timestamp"`
}

// InvoiceResolvedEvent records a paid, rejected or cancelled invoice.
type InvoiceResolvedEvent struct {
	InvoiceID uint64 `json:"invoice_id"`
	Requester string `json:"requester"`
	Payer     string `json:"payer"`
	Amount    uint64 `json:"amount"`
	Memo      string `json:"memo,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type InvoiceRefundedEvent struct {
	InvoiceID      uint64 `json:"invoice_id"`
	Requester      string `json:"requester"`
	Payer          string `json:"payer"`
	Amount         uint64 `json:"amount"`
	RefundedAmount uint64 `json:"refunded_amount"`
	Memo           string `json:"memo"`
	Timestamp      int64  `json:"timestamp"`
}
