package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowEmptyStats(t *testing.T) {
	w := NewWindow(10)
	stats := w.Stats()
	assert.Equal(t, WindowStats{}, stats)
	assert.Equal(t, 0, w.Len())
}

func TestWindowSingleSample(t *testing.T) {
	w := NewWindow(10)
	w.Push(42)
	stats := w.Stats()
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 42.0, stats.Min)
	assert.Equal(t, 42.0, stats.Max)
	assert.Equal(t, 42.0, stats.Mean)
	assert.Equal(t, 42.0, stats.P50)
	assert.Equal(t, 42.0, stats.P95)
	assert.Equal(t, 42.0, stats.P99)
}

func TestWindowBasicStats(t *testing.T) {
	w := NewWindow(100)
	for i := 1; i <= 100; i++ {
		w.Push(float64(i))
	}
	stats := w.Stats()
	assert.Equal(t, 100, stats.Count)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 100.0, stats.Max)
	assert.Equal(t, 5050.0, stats.Sum)
	assert.InDelta(t, 50.5, stats.Mean, 0.001)
	// index = (n-1)*q = 99*0.50 = 49.5 -> interpolate between a[49]=50, a[50]=51
	assert.InDelta(t, 50.5, stats.P50, 0.001)
}

func TestWindowFIFOEviction(t *testing.T) {
	w := NewWindow(3)
	w.Push(1)
	w.Push(2)
	w.Push(3)
	w.Push(4) // evicts 1

	assert.Equal(t, 3, w.Len())
	stats := w.Stats()
	assert.Equal(t, 2.0, stats.Min)
	assert.Equal(t, 4.0, stats.Max)
	assert.Equal(t, 9.0, stats.Sum)
}

func TestWindowNeverExceedsCapacity(t *testing.T) {
	w := NewWindow(5)
	for i := 0; i < 1000; i++ {
		w.Push(float64(i))
	}
	assert.Equal(t, 5, w.Len())
	assert.LessOrEqual(t, w.Len(), 5)
}

func TestWindowCapacityClampedToAtLeastOne(t *testing.T) {
	w := NewWindow(0)
	w.Push(1)
	w.Push(2)
	assert.Equal(t, 1, w.Len())
}

func TestWindowNegativeAndFractionalValuesAreLegal(t *testing.T) {
	w := NewWindow(10)
	w.Push(-5.5)
	w.Push(0)
	w.Push(3.25)
	stats := w.Stats()
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, -5.5, stats.Min)
	assert.Equal(t, 3.25, stats.Max)
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	// n=5, q=0.5 -> idx = 4*0.5 = 2 -> sorted[2] = 30
	assert.Equal(t, 30.0, percentile(sorted, 0.5))
	// q=0 -> idx=0 -> sorted[0]=10
	assert.Equal(t, 10.0, percentile(sorted, 0))
	// q=1 -> idx=4 -> sorted[4]=50
	assert.Equal(t, 50.0, percentile(sorted, 1))
}
