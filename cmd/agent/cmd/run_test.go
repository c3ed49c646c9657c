package cmd

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/clock"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/config"
)

func TestBuildWorkersWiresAllFourCollectors(t *testing.T) {
	cfg := config.Default()
	cfg.StateDir = "/state"
	fs := afero.NewMemMapFs()

	workers, err := buildWorkers(cfg, fs, clock.Real{}, zap.NewNop())
	require.NoError(t, err)

	names := make([]string, 0, len(workers))
	for _, w := range workers {
		names = append(names, w.Name)
	}
	assert.ElementsMatch(t, []string{"process", "network", "metrics", "log"}, names)
}

func TestBuildEngineWiresAllRules(t *testing.T) {
	cfg := config.Default()
	engine, err := buildEngine(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestWorkerIntervalsMapsEachWorkerByName(t *testing.T) {
	cfg := config.Default()
	cfg.StateDir = "/state"
	fs := afero.NewMemMapFs()
	workers, err := buildWorkers(cfg, fs, clock.Real{}, zap.NewNop())
	require.NoError(t, err)

	intervals := workerIntervals(workers)
	assert.Len(t, intervals, len(workers))
	assert.Equal(t, cfg.Intervals.Process, intervals["process"])
}
