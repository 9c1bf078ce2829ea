package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(SaveTotal.WithLabelValues("success"))
	SaveTotal.WithLabelValues("success").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SaveTotal.WithLabelValues("success")))

	pruned := testutil.ToFloat64(BackupsPrunedTotal)
	BackupsPrunedTotal.Add(2)
	assert.Equal(t, pruned+2, testutil.ToFloat64(BackupsPrunedTotal))
}

func TestMetricsRegisteredWithDefaultRegistry(t *testing.T) {
	LoadTotal.WithLabelValues("local", "success").Inc()
	CloudSyncTotal.WithLabelValues("push", "success").Inc()
	MigrationStepsTotal.WithLabelValues("applied").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}

	for _, want := range []string{
		"savekit_save_total",
		"savekit_load_total",
		"savekit_cloud_sync_total",
		"savekit_migration_steps_total",
	} {
		assert.True(t, names[want], "expected %s to be registered", want)
	}
}

func TestBuildInfo(t *testing.T) {
	BuildInfo.WithLabelValues("1.0.0", "go1.25").Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(BuildInfo.WithLabelValues("1.0.0", "go1.25")))
}
