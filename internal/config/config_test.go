package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LEDGER_CONFIG", "DB_SOURCE", "STORE_DRIVER", "SERVER_PORT", "ENVIRONMENT", "LOG_LEVEL", "CRANK_INTERVAL"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Driver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 30*time.Second, cfg.CrankInterval)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_driver: sqlite
db_source: /var/lib/ledger.db
server_port: "9000"
crank_interval: 5s
`), 0o600))
	t.Setenv("LEDGER_CONFIG", path)
	t.Setenv("SERVER_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "/var/lib/ledger.db", cfg.DBSource)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.CrankInterval)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without source", map[string]string{"STORE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"bad interval", map[string]string{"CRANK_INTERVAL": "soon"}},
		{"negative interval", map[string]string{"CRANK_INTERVAL": "-1s"}},
		{"missing file", map[string]string{"LEDGER_CONFIG": "/nonexistent/ledger.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
