package main

import (
	"testing"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/config"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchConfig(backend string) *config.Config {
	cfg := &config.Config{}
	cfg.Ledger.Backend = backend
	cfg.Ledger.Location = time.UTC
	cfg.Reports.Concurrency = 2
	return cfg
}

func TestRunEmptyRoster(t *testing.T) {
	day, err := domain.ParseDay("2026-10-14")
	require.NoError(t, err)
	assert.Equal(t, 0, run(batchConfig(config.BackendMemory), day))
}

func TestRunBackendFailureReturnsExitCode(t *testing.T) {
	// run must hand the code back instead of exiting, so its deferred
	// cleanup still executes.
	assert.Equal(t, 1, run(batchConfig("cassandra"), time.Time{}))
}
