package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sensor_hub/internal/imu"
)

func fill(t *testing.T, w *Window, sensor int, samples ...imu.Vector) {
	t.Helper()
	require.Len(t, samples, Size)
	for slot, s := range samples {
		require.NoError(t, w.Put(sensor, slot, s))
	}
}

func same(v imu.Vector) []imu.Vector {
	out := make([]imu.Vector, Size)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestFilter_DeadZone(t *testing.T) {
	var w Window
	fill(t, &w, 0,
		imu.Vector{X: 9, Y: -9, Z: 12},
		imu.Vector{X: 9, Y: -9, Z: 8},
		imu.Vector{X: 9, Y: -9, Z: 10},
		imu.Vector{X: 9, Y: -9, Z: 9},
		imu.Vector{X: 9, Y: -9, Z: 10},
	)

	got, err := w.Filter(0)
	require.NoError(t, err)
	// Z averages to 9.8 which is still inside the dead zone.
	assert.Equal(t, imu.Vector{}, got)
}

func TestFilter_ThresholdBoundary(t *testing.T) {
	var w Window
	// Averages of exactly +10 and -10 are outside the open interval (-10, 10).
	fill(t, &w, 1, same(imu.Vector{X: 10, Y: -10, Z: 0})...)

	got, err := w.Filter(1)
	require.NoError(t, err)
	assert.Equal(t, imu.Vector{X: 10, Y: -10, Z: 0}, got)
}

func TestFilter_RoundsHalfAwayFromZero(t *testing.T) {
	var w Window
	fill(t, &w, 2,
		imu.Vector{X: 20, Y: -20, Z: 100},
		imu.Vector{X: 20, Y: -20, Z: 100},
		imu.Vector{X: 21, Y: -21, Z: 100},
		imu.Vector{X: 21, Y: -21, Z: 101},
		imu.Vector{X: 20, Y: -21, Z: 101},
	)

	got, err := w.Filter(2)
	require.NoError(t, err)
	// X: 102/5 = 20.4, Y: -103/5 = -20.6, Z: 502/5 = 100.4
	assert.Equal(t, imu.Vector{X: 20, Y: -21, Z: 100}, got)

	var h Window
	fill(t, &h, 0,
		imu.Vector{X: 12, Y: -12},
		imu.Vector{X: 12, Y: -12},
		imu.Vector{X: 13, Y: -13},
		imu.Vector{X: 13, Y: -13},
		imu.Vector{X: 12, Y: -12},
	)
	got, err = h.Filter(0)
	require.NoError(t, err)
	assert.Equal(t, imu.Vector{X: 12, Y: -12}, got)

	// Integer sums never average to an exact .5 with a window of 5.
	assert.Equal(t, int8(13), smoothAxis(62.5))
	assert.Equal(t, int8(-13), smoothAxis(-62.5))
}

func TestFilter_Extremes(t *testing.T) {
	var w Window
	fill(t, &w, 3, same(imu.Vector{X: 127, Y: -128, Z: -11})...)

	got, err := w.Filter(3)
	require.NoError(t, err)
	assert.Equal(t, imu.Vector{X: 127, Y: -128, Z: -11}, got)
}

func TestFilter_Idempotent(t *testing.T) {
	var w Window
	fill(t, &w, 0,
		imu.Vector{X: 40, Y: 3, Z: -60},
		imu.Vector{X: 44, Y: 1, Z: -62},
		imu.Vector{X: 41, Y: 2, Z: -61},
		imu.Vector{X: 39, Y: 0, Z: -64},
		imu.Vector{X: 42, Y: 4, Z: -59},
	)

	first, err := w.Filter(0)
	require.NoError(t, err)
	second, err := w.Filter(0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, imu.Vector{X: 41, Y: 0, Z: -61}, first)
}

func TestFilter_PartialWindow(t *testing.T) {
	var w Window
	for slot := 0; slot < Size-1; slot++ {
		require.NoError(t, w.Put(0, slot, imu.Vector{X: 50}))
	}

	_, err := w.Filter(0)
	assert.ErrorIs(t, err, ErrPartialWindow)
	assert.False(t, w.Full())

	require.NoError(t, w.Put(0, Size-1, imu.Vector{X: 50}))
	assert.True(t, w.SensorFull(0))
	assert.False(t, w.Full(), "other sensors are still empty")
}

func TestWindow_ResetInvalidatesRound(t *testing.T) {
	var w Window
	for s := 0; s < NumSensors; s++ {
		fill(t, &w, s, same(imu.Vector{X: 30})...)
	}
	require.True(t, w.Full())

	w.Reset()
	assert.False(t, w.Full())
	_, err := w.Filter(0)
	assert.ErrorIs(t, err, ErrPartialWindow)

	v, err := w.At(0, 0)
	require.NoError(t, err)
	assert.Equal(t, imu.Vector{X: 30}, v, "reset keeps the values")
}

func TestWindow_BoundsChecked(t *testing.T) {
	var w Window
	assert.ErrorIs(t, w.Put(NumSensors, 0, imu.Vector{}), ErrIndex)
	assert.ErrorIs(t, w.Put(0, Size, imu.Vector{}), ErrIndex)
	assert.ErrorIs(t, w.Put(-1, 0, imu.Vector{}), ErrIndex)

	_, err := w.At(0, -1)
	assert.ErrorIs(t, err, ErrIndex)

	_, err = w.Filter(NumSensors)
	assert.ErrorIs(t, err, ErrIndex)
}
