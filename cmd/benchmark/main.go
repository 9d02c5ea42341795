package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

type options struct {
	url        string
	workers    int
	duration   time.Duration
	workload   string
	agents     int
	replayRate float64
	splitRate  float64
	out        string
}

// stats is shared by all workers.
type stats struct {
	total    atomic.Uint64
	created  atomic.Uint64
	replayed atomic.Uint64
	conflict atomic.Uint64
	refused  atomic.Uint64
	failed   atomic.Uint64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *stats) record(status int, replayed bool, took time.Duration) {
	s.total.Add(1)
	switch {
	case status == http.StatusCreated && replayed:
		s.replayed.Add(1)
	case status == http.StatusCreated:
		s.created.Add(1)
	case status == http.StatusConflict:
		s.conflict.Add(1)
	case status == http.StatusUnprocessableEntity:
		s.refused.Add(1)
	default:
		s.failed.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, took)
	s.mu.Unlock()
}

func main() {
	var o options
	flag.StringVar(&o.url, "url", "http://localhost:8080", "API base URL")
	flag.IntVar(&o.workers, "workers", 10, "concurrent workers")
	flag.DurationVar(&o.duration, "duration", 30*time.Second, "test duration")
	flag.StringVar(&o.workload, "workload", "uniform", "uniform | hotspot")
	flag.IntVar(&o.agents, "agents", 1000, "number of seeded agents")
	flag.Float64Var(&o.replayRate, "replay", 0, "fraction of requests that resend the previous idempotency key")
	flag.Float64Var(&o.splitRate, "split", 0, "fraction of requests sent as two-way splits")
	flag.StringVar(&o.out, "out", "", "results file (default results_<workload>.json)")
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync()
	log.Info("starting benchmark",
		zap.String("workload", o.workload),
		zap.Int("workers", o.workers),
		zap.Duration("duration", o.duration))

	ctx, cancel := context.WithTimeout(context.Background(), o.duration)
	defer cancel()

	s := &stats{}
	began := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for range o.workers {
		g.Go(func() error {
			run(ctx, o, s)
			return nil
		})
	}
	g.Wait()

	if err := report(o, s, time.Since(began)); err != nil {
		log.Error("write results", zap.Error(err))
	}
}

type request struct {
	path   string
	body   []byte
	sender int
	key    string
}

func run(ctx context.Context, o options, s *stats) {
	client := &http.Client{Timeout: 5 * time.Second}
	var prev *request
	for ctx.Err() == nil {
		req := prev
		if req == nil || rand.Float64() >= o.replayRate {
			req = nextRequest(o)
		}
		prev = req

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+req.path, bytes.NewReader(req.body))
		if err != nil {
			s.failed.Add(1)
			continue
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Idempotency-Key", req.key)
		httpReq.Header.Set("X-Ledger-Identity", fmt.Sprintf("seed-key-%04d", req.sender))

		t0 := time.Now()
		resp, err := client.Do(httpReq)
		if err != nil {
			if ctx.Err() == nil {
				s.failed.Add(1)
			}
			continue
		}
		resp.Body.Close()
		s.record(resp.StatusCode, resp.Header.Get("Idempotent-Replayed") == "true", time.Since(t0))
	}
}

func nextRequest(o options) *request {
	from, to := pickPair(o)
	if rand.Float64() < o.splitRate && o.agents > 2 {
		other := to
		for other == to || other == from {
			other = rand.Intn(o.agents) + 1
		}
		body, _ := json.Marshal(domain.SplitRequest{
			From:       agentName(from),
			Total:      200,
			Memo:       "bench split",
			Recipients: []domain.SplitRecipient{recipient(to, 5000), recipient(other, 5000)},
		})
		return &request{path: "/api/v1/transfers/split", body: body, sender: from, key: uuid.NewString()}
	}
	body, _ := json.Marshal(domain.TransferRequest{From: agentName(from), To: agentName(to), Amount: 100, Memo: "bench"})
	return &request{path: "/api/v1/transfers", body: body, sender: from, key: uuid.NewString()}
}

func recipient(i int, bps uint16) domain.SplitRecipient {
	name := agentName(i)
	return domain.SplitRecipient{Name: name, Agent: address.Agent(name), Vault: address.Vault(name), ShareBps: bps}
}

func agentName(i int) string { return fmt.Sprintf("agent-%04d", i) }

// pickPair returns distinct sender and receiver indexes in 1..agents.
// The hotspot workload sends 90% of traffic between agents 1 and 2.
func pickPair(o options) (int, int) {
	if o.workload == "hotspot" && rand.Float32() < 0.90 {
		if rand.Intn(2) == 0 {
			return 1, 2
		}
		return 2, 1
	}
	a := rand.Intn(o.agents) + 1
	b := rand.Intn(o.agents) + 1
	for a == b && o.agents > 1 {
		b = rand.Intn(o.agents) + 1
	}
	return a, b
}

func percentile(sorted []time.Duration, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)-1) * p)
	return float64(sorted[i].Microseconds()) / 1000
}

func report(o options, s *stats, elapsed time.Duration) error {
	s.mu.Lock()
	lat := slices.Clone(s.latencies)
	s.mu.Unlock()
	slices.Sort(lat)

	total := s.total.Load()
	var conflictPct float64
	if total > 0 {
		conflictPct = float64(s.conflict.Load()) / float64(total) * 100
	}
	results := map[string]any{
		"workload":          o.workload,
		"duration_sec":      elapsed.Seconds(),
		"total_requests":    total,
		"throughput_tps":    float64(total) / elapsed.Seconds(),
		"created":           s.created.Load(),
		"replayed":          s.replayed.Load(),
		"conflicts":         s.conflict.Load(),
		"conflict_rate_pct": conflictPct,
		"refused":           s.refused.Load(),
		"errors":            s.failed.Load(),
		"p50_ms":            percentile(lat, 0.50),
		"p99_ms":            percentile(lat, 0.99),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	name := o.out
	if name == "" {
		name = fmt.Sprintf("results_%s.json", o.workload)
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(results)
}
