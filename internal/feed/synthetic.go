package feed

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/jonboulle/clockwork"

	"fargoat/internal/models"
)

// Synthetic metric ranges, lower bound inclusive and upper bound exclusive
var metricRanges = map[string][2]int64{
	"tvl": {1_000_000, 2_000_000},
	"dau": {5_000, 8_000},
	"trx": {50_000, 80_000},
}

// GeneratorChart produces a combined chart point
const GeneratorChart = "chart"

// MetricGenerator returns a generator of uniformly distributed values for
// one of the tvl, dau or trx metrics
func MetricGenerator(metric string) (GeneratorFunc, error) {
	r, ok := metricRanges[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	return func() any {
		return models.MetricPoint{
			Metric: metric,
			Value:  randomIn(r),
		}
	}, nil
}

// ChartGenerator returns a generator of chart points stamped with clock
func ChartGenerator(clock clockwork.Clock) GeneratorFunc {
	return func() any {
		return models.ChartData{
			Timestamp: clock.Now().UnixMilli(),
			TVL:       float64(randomIn(metricRanges["tvl"])),
			DAU:       float64(randomIn(metricRanges["dau"])),
			TRX:       float64(randomIn(metricRanges["trx"])),
		}
	}
}

// SyntheticGenerator resolves a generator by name
func (h *Hub) SyntheticGenerator(name string) (GeneratorFunc, error) {
	if name == GeneratorChart {
		return ChartGenerator(h.clock), nil
	}
	return MetricGenerator(name)
}

// SyntheticGenerators lists the generator names SyntheticGenerator accepts
func SyntheticGenerators() []string {
	names := []string{GeneratorChart}
	for k := range metricRanges {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func randomIn(r [2]int64) int64 {
	return r[0] + rand.Int63n(r[1]-r[0])
}
