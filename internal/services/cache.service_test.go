package services

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/high001/webpanel/internal/models"
)

func countingCollector(calls *atomic.Int32) StatsCollector {
	return func() (*models.DashboardStats, error) {
		n := calls.Add(1)
		return &models.DashboardStats{Hostname: "host", CPU: models.CPUStats{Percent: float64(n)}}, nil
	}
}

func TestStatsCacheTTL(t *testing.T) {
	var calls atomic.Int32
	cache := NewStatsCache(countingCollector(&calls), time.Second, zerolog.Nop())
	start := time.Now()
	cache.now = func() time.Time { return start }

	first, err := cache.Get()
	require.NoError(t, err)
	second, err := cache.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	cache.now = func() time.Time { return start.Add(1500 * time.Millisecond) }
	third, err := cache.Get()
	require.NoError(t, err)
	assert.Equal(t, float64(2), third.CPU.Percent)

	cache.Clear()
	_, err = cache.Get()
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStatsCacheError(t *testing.T) {
	boom := errors.New("boom")
	cache := NewStatsCache(func() (*models.DashboardStats, error) { return nil, boom }, time.Second, zerolog.Nop())

	_, err := cache.Get()
	assert.ErrorIs(t, err, boom)
}

func TestSplitUptime(t *testing.T) {
	assert.Equal(t, models.Uptime{}, SplitUptime(59))
	assert.Equal(t, models.Uptime{Days: 1, Hours: 2, Minutes: 3}, SplitUptime(86400+2*3600+3*60+59))
}

func TestMapProcessState(t *testing.T) {
	assert.Equal(t, "running", mapProcessState("R"))
	assert.Equal(t, "sleeping", mapProcessState("S"))
	assert.Equal(t, "disk_sleep", mapProcessState("D"))
	assert.Equal(t, "zombie", mapProcessState("Z"))
	assert.Equal(t, "unknown", mapProcessState(""))
	assert.Equal(t, "Q", mapProcessState("Q"))
}

func TestSortByMemory(t *testing.T) {
	procs := []models.ProcessInfo{
		{PID: 30, MemoryPercent: 1.5},
		{PID: 12, MemoryPercent: 9},
		{PID: 7, MemoryPercent: 1.5},
	}
	sortByMemory(procs)
	assert.Equal(t, []int32{12, 7, 30}, []int32{procs[0].PID, procs[1].PID, procs[2].PID})
}

func TestKillRejectsInvalidPID(t *testing.T) {
	ps := NewProcessService()
	assert.ErrorIs(t, ps.Kill(t.Context(), 0), ErrProcessNotFound)
	assert.ErrorIs(t, ps.Kill(t.Context(), -4), ErrProcessNotFound)
}
