package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

type registerRequest struct {
	Name string `json:"name"`
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
	Source string `json:"source,omitempty"`
}

type withdrawRequest struct {
	Amount      uint64 `json:"amount"`
	Destination string `json:"destination,omitempty"`
}

type limitRequest struct {
	Limit uint64 `json:"limit"`
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

type pullRequest struct {
	Amount uint64 `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

type subscriptionRequest struct {
	Sender          string `json:"sender"`
	Receiver        string `json:"receiver"`
	Amount          uint64 `json:"amount"`
	IntervalSeconds int64  `json:"interval_seconds"`
}

type payerRequest struct {
	Payer string `json:"payer"`
}

type refundRequest struct {
	Amount uint64 `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) initCounter(w http.ResponseWriter, r *http.Request) {
	counter, err := h.ledger.InitInvoiceCounter(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, counter)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	agent, err := h.ledger.Register(r.Context(), identity(r), req.Name)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/agents/"+agent.Name)
	h.respondJSON(w, http.StatusCreated, agent)
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.ledger.Agents(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, agents)
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.ledger.Agent(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, agent)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	vault, err := h.ledger.Balance(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, vault)
}

func (h *Handler) getReputation(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.Reputation(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.ledger.Invoices(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, nonNil(invoices))
}

func (h *Handler) listAllowances(w http.ResponseWriter, r *http.Request) {
	allowances, err := h.ledger.Allowances(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, nonNil(allowances))
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.ledger.Subscriptions(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, nonNil(subs))
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	vault, err := h.ledger.Deposit(r.Context(), mux.Vars(r)["name"], req.Amount, req.Source)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, vault)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	vault, err := h.ledger.Withdraw(r.Context(), identity(r), mux.Vars(r)["name"], req.Amount, req.Destination)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, vault)
}

func (h *Handler) setLimit(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	agent, err := h.ledger.SetDailyLimit(r.Context(), identity(r), mux.Vars(r)["name"], req.Limit)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, agent)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.Resolve(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	event, err := h.ledger.Transfer(r.Context(), identity(r), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, event)
}

func (h *Handler) batchTransfer(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	event, err := h.ledger.BatchTransfer(r.Context(), identity(r), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, event)
}

func (h *Handler) split(w http.ResponseWriter, r *http.Request) {
	var req domain.SplitRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	event, err := h.ledger.Split(r.Context(), identity(r), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, event)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	allowance, err := h.ledger.Approve(r.Context(), identity(r), req.Owner, req.Spender, req.Amount)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, allowance)
}

func (h *Handler) getAllowance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	allowance, err := h.ledger.Allowance(r.Context(), vars["owner"], vars["spender"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, allowance)
}

func (h *Handler) transferFrom(w http.ResponseWriter, r *http.Request) {
	var req pullRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	vars := mux.Vars(r)
	event, err := h.ledger.TransferFrom(r.Context(), identity(r), domain.TransferFromRequest{
		Owner:   vars["owner"],
		Spender: vars["spender"],
		Amount:  req.Amount,
		Memo:    req.Memo,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, event)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	allowance, err := h.ledger.Revoke(r.Context(), identity(r), vars["owner"], vars["spender"])
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, allowance)
}

func (h *Handler) increaseAllowance(w http.ResponseWriter, r *http.Request) {
	var req pullRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	vars := mux.Vars(r)
	allowance, err := h.ledger.IncreaseAllowance(r.Context(), identity(r), vars["owner"], vars["spender"], req.Amount)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, allowance)
}

func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	sub, err := h.ledger.CreateSubscription(r.Context(), identity(r), req.Sender, req.Receiver, req.Amount, req.IntervalSeconds)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/subscriptions/"+sub.Address.String())
	h.respondJSON(w, http.StatusCreated, sub)
}

func (h *Handler) dueSubscriptions(w http.ResponseWriter, r *http.Request) {
	due, err := h.ledger.DueSubscriptions(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, nonNil(due))
}

func (h *Handler) crank(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.Crank(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func subscriptionAddress(r *http.Request) (address.Address, bool) {
	addr, err := address.Parse(mux.Vars(r)["address"])
	return addr, err == nil
}

func (h *Handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	addr, ok := subscriptionAddress(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid subscription address")
		return
	}
	sub, err := h.ledger.Subscription(r.Context(), addr)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, sub)
}

func (h *Handler) executeSubscription(w http.ResponseWriter, r *http.Request) {
	addr, ok := subscriptionAddress(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid subscription address")
		return
	}
	event, err := h.ledger.ExecuteSubscription(r.Context(), addr)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, event)
}

func (h *Handler) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	addr, ok := subscriptionAddress(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid subscription address")
		return
	}
	sub, err := h.ledger.CancelSubscription(r.Context(), identity(r), addr)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, sub)
}

func invoiceID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req domain.InvoiceRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	inv, err := h.ledger.CreateInvoice(r.Context(), identity(r), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/invoices/"+strconv.FormatUint(inv.ID, 10))
	h.respondJSON(w, http.StatusCreated, inv)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}
	inv, err := h.ledger.Invoice(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

func (h *Handler) payInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}
	var req payerRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	inv, err := h.ledger.PayInvoice(r.Context(), identity(r), id, req.Payer)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

func (h *Handler) rejectInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}
	var req payerRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	inv, err := h.ledger.RejectInvoice(r.Context(), identity(r), id, req.Payer)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}
	inv, err := h.ledger.CancelInvoice(r.Context(), identity(r), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

func (h *Handler) refundInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}
	var req refundRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	event, err := h.ledger.RefundInvoice(r.Context(), identity(r), id, req.Amount, req.Reason)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, event)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	entries, err := h.ledger.Leaderboard(r.Context(), q.Get("sort"), limit)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	events, err := h.ledger.Events(r.Context(), after, limit)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, nonNil(events))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
