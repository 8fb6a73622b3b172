package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/devon-ng/gatewaycore/internal/config"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += metricValue(m)
		}
	}
	return total
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	default:
		return 0
	}
}

func TestTurnStarted_RecordsActiveThenOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	stop := r.TurnStarted(config.ProviderOpenAI)
	if v := counterValue(t, reg, "gatewaycore_turns_active"); v != 1 {
		t.Fatalf("turns_active = %v, want 1", v)
	}

	stop(OutcomeCompleted)

	if v := counterValue(t, reg, "gatewaycore_turns_active"); v != 0 {
		t.Fatalf("turns_active after stop = %v, want 0", v)
	}
	if v := counterValue(t, reg, "gatewaycore_turns_total"); v != 1 {
		t.Fatalf("turns_total = %v, want 1", v)
	}
}
