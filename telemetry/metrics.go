package telemetry

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// UCUM units.
const (
	unitDimensionless = "1"
	unitMilliseconds  = "ms"
)

// Imports, exports and scans run from milliseconds to tens of seconds.
//
//nolint:gochecknoglobals // histogram boundaries
var latencyBoundaries = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Views buckets the <name>/latency histogram and derives a <name>/completed_calls
// count per method and status from it.
func Views(name string) []sdkmetric.View {
	latency := name + "/latency"

	return []sdkmetric.View{
		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind != sdkmetric.InstrumentKindHistogram || inst.Name != latency {
				return sdkmetric.Stream{}, false
			}
			return sdkmetric.Stream{
				Name:        inst.Name,
				Description: "Distribution of method latency, by package and method.",
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyBoundaries},
				AttributeFilter: func(kv attribute.KeyValue) bool {
					return kv.Key == packageKey || kv.Key == methodKey
				},
			}, true
		},
		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind != sdkmetric.InstrumentKindHistogram || inst.Name != latency {
				return sdkmetric.Stream{}, false
			}
			return sdkmetric.Stream{
				Name:        strings.TrimSuffix(inst.Name, "/latency") + "/completed_calls",
				Description: "Count of method calls by method and status.",
				Aggregation: sdkmetric.DefaultAggregationSelector(sdkmetric.InstrumentKindCounter),
				AttributeFilter: func(kv attribute.KeyValue) bool {
					return kv.Key == methodKey || kv.Key == statusKey
				},
			}, true
		},
	}
}

func packageMeter(name string) metric.Meter {
	return otel.Meter(name, metric.WithInstrumentationAttributes(packageKey.String(name)))
}

// LatencyMeasure returns the histogram the tracer records method latency into.
func LatencyMeasure(name string) metric.Float64Histogram {
	m, err := packageMeter(name).Float64Histogram(
		name+"/latency",
		metric.WithDescription("Latency distribution of method calls"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		// only invalid instrument names fail
		panic(fmt.Sprintf("latency measure %q: %v", name, err))
	}
	return m
}

// DimensionlessMeasure returns a counter named <name><suffix>, such as translation-manager/imported_translations.
func DimensionlessMeasure(name, suffix, description string) metric.Int64Counter {
	m, err := packageMeter(name).Int64Counter(
		name+suffix,
		metric.WithDescription(description),
		metric.WithUnit(unitDimensionless),
	)
	if err != nil {
		panic(fmt.Sprintf("counter %q: %v", name+suffix, err))
	}
	return m
}
