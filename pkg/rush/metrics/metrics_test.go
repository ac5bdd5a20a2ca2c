package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/netshaper/rush/pkg/rush/apps/basicapps"
	"github.com/netshaper/rush/pkg/rush/engine"
)

func TestCollectAdvancesCountersByDelta(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	e := engine.New()
	c := engine.NewConfig()
	c.AddApp("src", basicapps.Source{Size: 64})
	c.AddApp("sink", basicapps.Sink{})
	require.NoError(t, c.AddLink("src.output -> sink.input"))
	e.Configure(c)

	e.Breathe()
	r.Collect(e)
	e.Breathe()
	r.Collect(e)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var breathsTotal float64
	for _, mf := range metricFamilies {
		if mf.GetName() == "rush_engine_breaths_total" {
			breathsTotal = counterValue(mf)
		}
	}
	require.Equal(t, float64(2), breathsTotal)
}

func counterValue(mf *dto.MetricFamily) float64 {
	for _, m := range mf.GetMetric() {
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestNewServerServesMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRegistry(reg)
	s := NewServer("127.0.0.1:0", reg)
	require.NotNil(t, s.http)
	require.True(t, strings.HasSuffix(s.http.Addr, ":0"))
}
