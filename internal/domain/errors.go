package domain

// Kind classifies a ledger error by who is at fault and whether state could have changed.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindConsistency
	KindPolicy
	KindArithmetic
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConsistency:
		return "consistency"
	case KindPolicy:
		return "policy"
	case KindArithmetic:
		return "arithmetic"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a ledger rule violation. Values are compared by identity with errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation errors.
var (
	ErrInvalidNameLength  = newError(KindValidation, "InvalidNameLength", "name must be between 1 and 32 bytes")
	ErrInvalidAmount      = newError(KindValidation, "InvalidAmount", "amount must be greater than 0")
	ErrMemoTooLong        = newError(KindValidation, "MemoTooLong", "memo exceeds 128 bytes")
	ErrInvalidBatchSize   = newError(KindValidation, "InvalidBatchSize", "batch must contain 1-10 payments")
	ErrInvalidSplitSize   = newError(KindValidation, "InvalidSplitSize", "split must have 2-10 recipients")
	ErrInvalidSplitShares = newError(KindValidation, "InvalidSplitShares", "split shares must add up to 10000 basis points")
	ErrInvalidInterval    = newError(KindValidation, "InvalidInterval", "subscription interval must be at least 60 seconds")
	ErrInvalidExpiry      = newError(KindValidation, "InvalidExpiry", "invalid expiry value")
	ErrCannotApproveSelf  = newError(KindValidation, "CannotApproveSelf", "cannot approve yourself")
	ErrCannotInvoiceSelf  = newError(KindValidation, "CannotInvoiceSelf", "cannot invoice yourself")
)

// Authorization errors.
var (
	ErrUnauthorized   = newError(KindAuthorization, "Unauthorized", "unauthorized: caller does not control this agent")
	ErrVaultAuthority = newError(KindAuthorization, "VaultAuthority", "signer is not the vault authority")
)

// Consistency errors.
var (
	ErrNameMismatch        = newError(KindConsistency, "NameMismatch", "recipient name does not match registry")
	ErrVaultMismatch       = newError(KindConsistency, "VaultMismatch", "vault does not match agent registry")
	ErrAllowanceMismatch   = newError(KindConsistency, "AllowanceMismatch", "allowance does not match owner/spender")
	ErrInvoiceMismatch     = newError(KindConsistency, "InvoiceMismatch", "invoice does not match payer/requester")
	ErrInvalidSubscription = newError(KindConsistency, "InvalidSubscription", "invalid subscription: sender/receiver mismatch")
)

// Policy errors.
var (
	ErrSpendingCapExceeded   = newError(KindPolicy, "SpendingCapExceeded", "transfer would exceed daily spending limit")
	ErrAllowanceExceeded     = newError(KindPolicy, "AllowanceExceeded", "transfer amount exceeds remaining allowance")
	ErrAllowanceNotActive    = newError(KindPolicy, "AllowanceNotActive", "allowance is not active")
	ErrSubscriptionNotDue    = newError(KindPolicy, "SubscriptionNotDue", "subscription is not yet due")
	ErrSubscriptionNotActive = newError(KindPolicy, "SubscriptionNotActive", "subscription is not active")
	ErrInvoiceExpired        = newError(KindPolicy, "InvoiceExpired", "invoice has expired")
	ErrInvoiceNotPending     = newError(KindPolicy, "InvoiceNotPending", "invoice is not in pending status")
	ErrInvoiceNotPaid        = newError(KindPolicy, "InvoiceNotPaid", "only paid invoices can be refunded")
	ErrRefundExceedsPayment  = newError(KindPolicy, "RefundExceedsPayment", "refund exceeds the original payment")
	ErrInsufficientFunds     = newError(KindPolicy, "InsufficientFunds", "insufficient funds")
)

// Arithmetic errors.
var (
	ErrOverflow = newError(KindArithmetic, "Overflow", "arithmetic overflow")
)

// Lookup and bootstrap errors.
var (
	ErrAgentNotFound             = newError(KindNotFound, "AgentNotFound", "agent not found")
	ErrVaultNotFound             = newError(KindNotFound, "VaultNotFound", "vault not found")
	ErrAllowanceNotFound         = newError(KindNotFound, "AllowanceNotFound", "allowance not found")
	ErrSubscriptionNotFound      = newError(KindNotFound, "SubscriptionNotFound", "subscription not found")
	ErrInvoiceNotFound           = newError(KindNotFound, "InvoiceNotFound", "invoice not found")
	ErrCounterNotInitialized     = newError(KindNotFound, "CounterNotInitialized", "invoice counter has not been initialized")
	ErrAgentExists               = newError(KindConflict, "AgentExists", "agent name is already registered")
	ErrSubscriptionExists        = newError(KindConflict, "SubscriptionExists", "subscription already exists for this sender and receiver")
	ErrCounterAlreadyInitialized = newError(KindConflict, "CounterAlreadyInitialized", "invoice counter is already initialized")
	ErrConflict                  = newError(KindConflict, "Conflict", "request conflicts with a concurrent request")
)
