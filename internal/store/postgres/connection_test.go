package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrychain/pulse/internal/store/postgres"
)

func TestDefaultConfig(t *testing.T) {
	cfg := postgres.DefaultConfig()

	assert.Equal(t, 20, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.False(t, cfg.Enabled)
}

func TestNewManagerDisabled(t *testing.T) {
	mgr, err := postgres.NewManager(postgres.Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, mgr.IsEnabled())
	assert.Nil(t, mgr.Repository())
	assert.Nil(t, mgr.DB())

	health := mgr.Health().Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Contains(t, health.Errors[0], "disabled")
}

func TestNewManagerMissingDSN(t *testing.T) {
	_, err := postgres.NewManager(postgres.Config{Enabled: true})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DSN required")
}

func TestManagerCloseDisabledIsNoop(t *testing.T) {
	mgr, err := postgres.NewManager(postgres.Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, mgr.Close())
}
