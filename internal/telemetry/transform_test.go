package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

func TestResourceMetricsProto(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rm := &metricdata.ResourceMetrics{
		Resource: NewResource("beacon", "test-host"),
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Scope: instrumentation.Scope{Name: "beacon"},
			Metrics: []metricdata.Metrics{
				{
					Name: "hits",
					Data: metricdata.Sum[int64]{
						Temporality: metricdata.DeltaTemporality,
						IsMonotonic: true,
						DataPoints: []metricdata.DataPoint[int64]{{
							Attributes: attribute.NewSet(attribute.String("route", "/")),
							Time:       now,
							Value:      3,
						}},
					},
				},
				{
					Name: "latency",
					Data: metricdata.Histogram[float64]{
						Temporality: metricdata.DeltaTemporality,
						DataPoints: []metricdata.HistogramDataPoint[float64]{{
							Time:         now,
							Count:        2,
							Sum:          7.5,
							Bounds:       []float64{5, 10},
							BucketCounts: []uint64{1, 1, 0},
							Min:          metricdata.NewExtrema(2.5),
							Max:          metricdata.NewExtrema(5.0),
						}},
					},
				},
				{
					Name: "unsupported",
					Data: metricdata.Summary{},
				},
			},
		}},
	}

	out := resourceMetricsProto(rm)
	require.Len(t, out.ScopeMetrics, 1)
	metrics := out.ScopeMetrics[0].Metrics
	require.Len(t, metrics, 2, "unsupported aggregations are skipped")

	sum := metrics[0].GetSum()
	require.NotNil(t, sum)
	assert.True(t, sum.IsMonotonic)
	assert.Equal(t, metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_DELTA, sum.AggregationTemporality)
	assert.Equal(t, int64(3), sum.DataPoints[0].GetAsInt())
	assert.Equal(t, uint64(now.UnixNano()), sum.DataPoints[0].TimeUnixNano)
	assert.Equal(t, "route", sum.DataPoints[0].Attributes[0].Key)

	hist := metrics[1].GetHistogram()
	require.NotNil(t, hist)
	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(2), dp.Count)
	assert.Equal(t, 7.5, dp.GetSum())
	assert.Equal(t, 2.5, dp.GetMin())
	assert.Equal(t, 5.0, dp.GetMax())
	assert.Equal(t, []uint64{1, 1, 0}, dp.BucketCounts)

	var names []string
	for _, kv := range out.Resource.Attributes {
		names = append(names, kv.Key)
	}
	assert.Contains(t, names, "service.name")
	assert.Contains(t, names, "host.name")
}

func TestAttributeValueProto_Slices(t *testing.T) {
	v := attributeValueProto(attribute.StringSliceValue([]string{"a", "b"}))
	require.NotNil(t, v.GetArrayValue())
	require.Len(t, v.GetArrayValue().Values, 2)
	assert.Equal(t, "b", v.GetArrayValue().Values[1].GetStringValue())
}
