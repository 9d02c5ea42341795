package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/config"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/logging"
	"github.com/punchamoorthee/clawledger/internal/service"
	"github.com/punchamoorthee/clawledger/internal/store"
)

const (
	TotalAgents    = 1000
	InitialBalance = 100 * domain.UnitsPerDisplay
)

// agentName and agentIdentity are the naming scheme shared with the benchmark.
func agentName(i int) string              { return fmt.Sprintf("agent-%04d", i) }
func agentIdentity(i int) domain.Identity { return domain.Identity(fmt.Sprintf("seed-key-%04d", i)) }

var errEphemeralStore = errors.New("memory store is discarded on exit, set STORE_DRIVER to sqlite or postgres")

// checkDriver rejects stores that would not outlive the seeder process.
func checkDriver(driver string) error {
	if driver == config.DriverMemory {
		return errEphemeralStore
	}
	return nil
}

func main() {
	total := flag.Int("agents", TotalAgents, "number of agents to register")
	balance := flag.Uint64("balance", InitialBalance, "initial deposit per agent in base units")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := checkDriver(cfg.Driver); err != nil {
		logger.Fatal("refusing to seed", zap.Error(err))
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Driver, cfg.DBSource)
	if err != nil {
		logger.Fatal("unable to open store", zap.Error(err))
	}
	defer st.Close()

	ledger := service.New(st)
	logger.Info("seeding ledger", zap.Int("agents", *total), zap.Uint64("balance", *balance))

	if _, err := ledger.InitInvoiceCounter(ctx); err != nil && !errors.Is(err, domain.ErrCounterAlreadyInitialized) {
		logger.Fatal("init invoice counter", zap.Error(err))
	}

	created, skipped := 0, 0
	for i := 1; i <= *total; i++ {
		name := agentName(i)
		_, err := ledger.Register(ctx, agentIdentity(i), name)
		if errors.Is(err, domain.ErrAgentExists) {
			skipped++
			continue
		}
		if err != nil {
			logger.Fatal("register failed", zap.String("agent", name), zap.Error(err))
		}
		if *balance > 0 {
			if _, err := ledger.Deposit(ctx, name, *balance, "seeder"); err != nil {
				logger.Fatal("deposit failed", zap.String("agent", name), zap.Error(err))
			}
		}
		created++
	}

	logger.Info("seeding finished", zap.Int("created", created), zap.Int("skipped", skipped))
}
