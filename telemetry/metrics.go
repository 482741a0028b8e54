package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Units follow the UCUM abbreviations.
const (
	unitDimensionless = "1"
	unitMilliseconds  = "ms"
)

const packageKey = attribute.Key("translatable_package")

func meter(pkg string) metric.Meter {
	return otel.Meter(pkg, metric.WithInstrumentationAttributes(packageKey.String(pkg)))
}

// LatencyMeasure returns the histogram operations record their duration in.
func LatencyMeasure(pkg string) metric.Float64Histogram {
	m, err := meter(pkg).Float64Histogram(
		pkg+"/latency",
		metric.WithDescription("Latency distribution of translation storage operations"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		// Only invalid instrument names fail here.
		panic(fmt.Sprintf("latency measure %q: %v", pkg, err))
	}
	return m
}

// DimensionlessMeasure returns a counter named pkg+name.
func DimensionlessMeasure(pkg, name, description string) metric.Int64Counter {
	m, err := meter(pkg).Int64Counter(
		pkg+name,
		metric.WithDescription(description),
		metric.WithUnit(unitDimensionless),
	)
	if err != nil {
		panic(fmt.Sprintf("counter %q: %v", pkg+name, err))
	}
	return m
}
