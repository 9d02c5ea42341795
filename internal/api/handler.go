package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/service"
	"github.com/punchamoorthee/clawledger/internal/store"
)

const (
	IdentityHeader    = "X-Ledger-Identity"
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

var (
	errIdempotencyMismatch = errors.New("idempotency key reused with a different payload")
	errMalformedBody       = errors.New("malformed JSON body")
)

type Handler struct {
	ledger *service.Ledger
	log    *zap.Logger
}

func NewHandler(l *service.Ledger, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{ledger: l, log: log}
}

// Router builds the HTTP surface. /metrics is mounted by the caller.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.route(r, http.MethodGet, "/health", h.health)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	h.route(v1, http.MethodPost, "/counter", h.idempotent(h.initCounter))

	h.route(v1, http.MethodPost, "/agents", h.idempotent(h.register))
	h.route(v1, http.MethodGet, "/agents", h.listAgents)
	h.route(v1, http.MethodGet, "/agents/{name}", h.getAgent)
	h.route(v1, http.MethodGet, "/agents/{name}/balance", h.getBalance)
	h.route(v1, http.MethodGet, "/agents/{name}/reputation", h.getReputation)
	h.route(v1, http.MethodGet, "/agents/{name}/invoices", h.listInvoices)
	h.route(v1, http.MethodGet, "/agents/{name}/allowances", h.listAllowances)
	h.route(v1, http.MethodGet, "/agents/{name}/subscriptions", h.listSubscriptions)
	h.route(v1, http.MethodPost, "/agents/{name}/deposit", h.idempotent(h.deposit))
	h.route(v1, http.MethodPost, "/agents/{name}/withdraw", h.idempotent(h.withdraw))
	h.route(v1, http.MethodPost, "/agents/{name}/limit", h.idempotent(h.setLimit))
	h.route(v1, http.MethodGet, "/resolve/{name}", h.resolve)

	h.route(v1, http.MethodPost, "/transfers", h.idempotent(h.transfer))
	h.route(v1, http.MethodPost, "/transfers/batch", h.idempotent(h.batchTransfer))
	h.route(v1, http.MethodPost, "/transfers/split", h.idempotent(h.split))

	h.route(v1, http.MethodPost, "/allowances", h.idempotent(h.approve))
	h.route(v1, http.MethodGet, "/allowances/{owner}/{spender}", h.getAllowance)
	h.route(v1, http.MethodPost, "/allowances/{owner}/{spender}/pull", h.idempotent(h.transferFrom))
	h.route(v1, http.MethodPost, "/allowances/{owner}/{spender}/revoke", h.idempotent(h.revoke))
	h.route(v1, http.MethodPost, "/allowances/{owner}/{spender}/increase", h.idempotent(h.increaseAllowance))

	h.route(v1, http.MethodPost, "/subscriptions", h.idempotent(h.createSubscription))
	h.route(v1, http.MethodGet, "/subscriptions/due", h.dueSubscriptions)
	h.route(v1, http.MethodPost, "/subscriptions/crank", h.crank)
	h.route(v1, http.MethodGet, "/subscriptions/{address}", h.getSubscription)
	h.route(v1, http.MethodPost, "/subscriptions/{address}/execute", h.idempotent(h.executeSubscription))
	h.route(v1, http.MethodPost, "/subscriptions/{address}/cancel", h.idempotent(h.cancelSubscription))

	h.route(v1, http.MethodPost, "/invoices", h.idempotent(h.createInvoice))
	h.route(v1, http.MethodGet, "/invoices/{id}", h.getInvoice)
	h.route(v1, http.MethodPost, "/invoices/{id}/pay", h.idempotent(h.payInvoice))
	h.route(v1, http.MethodPost, "/invoices/{id}/reject", h.idempotent(h.rejectInvoice))
	h.route(v1, http.MethodPost, "/invoices/{id}/cancel", h.idempotent(h.cancelInvoice))
	h.route(v1, http.MethodPost, "/invoices/{id}/refund", h.idempotent(h.refundInvoice))

	h.route(v1, http.MethodGet, "/leaderboard", h.leaderboard)
	h.route(v1, http.MethodGet, "/events", h.events)
	return r
}

// route registers fn and records request count and latency under the path template.
func (h *Handler) route(r *mux.Router, method, path string, fn http.HandlerFunc) {
	endpoint := path
	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(method, endpoint))
		defer timer.ObserveDuration()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		fn(sw, req)
		httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(sw.status)).Inc()
	}).Methods(method)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// bufferedWriter holds a response until the surrounding transaction decides its fate.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header         { return b.header }
func (b *bufferedWriter) Write(p []byte) (int, error) { return b.body.Write(p) }
func (b *bufferedWriter) WriteHeader(code int)        { b.status = code }

func (b *bufferedWriter) flush(w http.ResponseWriter) {
	for k, v := range b.header {
		w.Header()[k] = v
	}
	w.WriteHeader(b.status)
	w.Write(b.body.Bytes())
}

// errRejected aborts the idempotency transaction when the wrapped handler failed,
// so no partial effects and no idempotency record are committed.
type errRejected struct{ resp *bufferedWriter }

func (errRejected) Error() string { return "request rejected" }

// idempotent makes a POST replayable. With an Idempotency-Key header the handler runs
// inside one store transaction together with the lookup and the write of the
// idempotency record; a replay with the same body returns the stored response and a
// replay with a different body is refused. Without the header fn runs as is.
func (h *Handler) idempotent(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if key == "" {
			fn(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			h.respondError(w, http.StatusInternalServerError, "stream read error")
			return
		}
		sum := sha256.Sum256(append([]byte(r.Method+" "+r.URL.Path+"\n"), body...))
		reqHash := hex.EncodeToString(sum[:])

		var replay *domain.IdempotencyRecord
		resp := newBufferedWriter()
		err = h.ledger.Store().WithTx(r.Context(), func(ctx context.Context, tx store.Tx) error {
			rec, err := tx.Idempotency(ctx, key)
			switch {
			case err == nil:
				if rec.RequestHash != reqHash {
					return errIdempotencyMismatch
				}
				replay = rec
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}

			inner := r.Clone(ctx)
			inner.Body = io.NopCloser(bytes.NewReader(body))
			fn(resp, inner)
			if resp.status >= http.StatusBadRequest {
				return errRejected{resp: resp}
			}
			return tx.SaveIdempotency(ctx, domain.IdempotencyRecord{
				Key:            key,
				RequestHash:    reqHash,
				ResponseStatus: resp.status,
				ResponseBody:   bytes.TrimSpace(resp.body.Bytes()),
			})
		})

		var rejected errRejected
		switch {
		case errors.As(err, &rejected):
			rejected.resp.flush(w)
		case errors.Is(err, errIdempotencyMismatch):
			h.respondError(w, http.StatusUnprocessableEntity, "key reuse with mismatched payload")
		case errors.Is(err, store.ErrExists):
			h.respondError(w, http.StatusConflict, "request processing in progress")
		case err != nil:
			h.respondErr(w, err)
		case replay != nil:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(ReplayedHeader, "true")
			w.WriteHeader(replay.ResponseStatus)
			w.Write(replay.ResponseBody)
		default:
			resp.flush(w)
		}
	}
}

func identity(r *http.Request) domain.Identity {
	return domain.Identity(r.Header.Get(IdentityHeader))
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errMalformedBody
	}
	return nil
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindConsistency, domain.KindPolicy, domain.KindArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg string) {
	h.respondJSON(w, code, map[string]string{"error": msg})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	var de *domain.Error
	if errors.As(err, &de) {
		h.respondJSON(w, code, map[string]string{"error": de.Message, "code": de.Code})
		return
	}
	if errors.Is(err, errMalformedBody) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error("request failed", zap.Error(err))
	h.respondError(w, code, "Internal Server Error")
}
