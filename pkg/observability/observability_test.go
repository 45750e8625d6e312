package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingConfig_SetDefaults(t *testing.T) {
	var c TracingConfig
	c.SetDefaults()
	assert.Equal(t, DefaultServiceName, c.ServiceName)
	assert.Equal(t, DefaultSamplingRate, c.SamplingRate)
	assert.Equal(t, "otlp", c.Exporter)
	assert.Equal(t, DefaultOTLPEndpoint, c.Endpoint)
	assert.True(t, c.IsInsecure())
	assert.Equal(t, 10*time.Second, c.Timeout)
}

func TestTracingConfig_Validate(t *testing.T) {
	disabled := TracingConfig{}
	require.NoError(t, disabled.Validate())

	invalidSampling := TracingConfig{Enabled: true, Endpoint: "localhost:4317", SamplingRate: 2}
	require.Error(t, invalidSampling.Validate())

	invalidExporter := TracingConfig{Enabled: true, Endpoint: "localhost:4317", SamplingRate: 1, Exporter: "zipkin"}
	require.Error(t, invalidExporter.Validate())

	valid := TracingConfig{Enabled: true, Endpoint: "localhost:4317", SamplingRate: 0.5, Exporter: "otlp"}
	require.NoError(t, valid.Validate())
}

func TestNewMetrics_DisabledReturnsNil(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAgentCall("classifier", time.Millisecond)
		m.RecordPlanStarted("architect")
		m.RecordSubtaskRetried("orchestrator")
		m.RecordFSMTransition("idle", "planning", "message_received")
		m.SetApprovalQueueDepth(3)
	})
}

func TestMetrics_RecordAgentCall(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "agentrt_test"})
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordAgentCall("classifier", 50*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.agentCalls.WithLabelValues("classifier")))
}

func TestMetrics_RecordApprovalDecided_CountsExpired(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "agentrt_test2"})
	require.NoError(t, err)

	m.RecordApprovalDecided("plan", "expired", 90*time.Second)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.approvalExpired))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.approvalDecided.WithLabelValues("plan", "expired")))
}

func TestMetrics_RecordFSMTransition(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "agentrt_test3"})
	require.NoError(t, err)

	m.RecordFSMTransition("awaiting_approval", "executing", "plan_approved")
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.fsmTransitions.WithLabelValues("awaiting_approval", "executing", "plan_approved")))
}

func TestInitTracerProvider_Disabled(t *testing.T) {
	tp, err := InitTracerProvider(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tp)

	tracer := GetTracer("agentrt/test")
	_, span := tracer.Start(context.Background(), "noop-span")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}
