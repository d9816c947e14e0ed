package internal

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusEmitter(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterTelemetryEmitter(NewPrometheusEmitter(reg, "sweet"))
	defer RegisterTelemetryEmitter(nil)
	ctx := context.Background()

	EmitOperation(ctx, "create_schema", outcomeOK, 20*time.Millisecond)
	EmitOperation(ctx, "create_schema", outcomeOK, 30*time.Millisecond)
	EmitOperation(ctx, "create_schema", "conflict", time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["sweet_schema_operations_total"])
	assert.True(t, names["sweet_schema_operation_duration_seconds"])

	count, err := testutil.GatherAndCount(reg, "sweet_schema_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per operation and outcome")
}

func TestPrometheusEmitter_IgnoresOtherEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	emit := NewPrometheusEmitter(reg, "sweet")
	emit(context.Background(), "unrelated_event", nil, 1)

	count, err := testutil.GatherAndCount(reg, "sweet_schema_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEmitOperation_Labels(t *testing.T) {
	var gotName string
	var gotLabels map[string]string
	var gotValue any
	RegisterTelemetryEmitter(func(ctx context.Context, name string, labels map[string]string, value any) {
		gotName, gotLabels, gotValue = name, labels, value
	})
	defer RegisterTelemetryEmitter(nil)

	EmitOperation(context.Background(), "delete_schema", outcomeError, 5*time.Millisecond)

	assert.Equal(t, schemaOperationEvent, gotName)
	assert.Equal(t, map[string]string{"operation": "delete_schema", "outcome": "error"}, gotLabels)
	assert.Equal(t, 5*time.Millisecond, gotValue)
}
