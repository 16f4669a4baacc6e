package app

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Entry {
	return log.WithField("component", "test")
}

func TestRun_StartsAndStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	// random free ports so parallel test runs do not collide
	cfg.App.HTTPAddr = "127.0.0.1:0"
	cfg.App.OpsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg)
	}()

	// give the servers a moment to come up, then stop
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestBuildDependencies_MemoryDefaults(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := buildDependencies(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer deps.close(testLogger())

	assert.NotNil(t, deps.orders)
	assert.NotNil(t, deps.catalog)
	assert.NotNil(t, deps.counter)
	assert.NotNil(t, deps.outbox)
	assert.NotNil(t, deps.documents)
	assert.NotNil(t, deps.idempotency)
	assert.NotNil(t, deps.flows)
	assert.NotNil(t, deps.health)

	// without kafka brokers there is no producer and no outbox worker
	assert.Nil(t, deps.kafkaProducer)
	assert.Nil(t, deps.outboxWorker)
	// the in-memory idempotency store needs the cleanup worker
	assert.NotNil(t, deps.cleanupWorker)
	// no postgres, no redis
	assert.Nil(t, deps.store)
	assert.Nil(t, deps.redisClient)
}
