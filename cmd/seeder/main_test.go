package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/punchamoorthee/clawledger/internal/config"
)

func TestCheckDriver(t *testing.T) {
	assert.ErrorIs(t, checkDriver(config.DriverMemory), errEphemeralStore)
	assert.NoError(t, checkDriver(config.DriverSQLite))
	assert.NoError(t, checkDriver(config.DriverPostgres))
}

func TestNamingMatchesBenchmark(t *testing.T) {
	assert.Equal(t, "agent-0007", agentName(7))
	assert.EqualValues(t, "seed-key-0007", agentIdentity(7))
}
