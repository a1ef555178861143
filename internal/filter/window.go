// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filter holds the per-sensor sample window and its moving average.
package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/sensor_hub/internal/imu"
)

const (
	// NumSensors is the number of logical accelerometers.
	NumSensors = 4
	// Size is the number of samples averaged into one output (WINDOW).
	Size = 5
	// ZeroThreshold is the dead-zone half-width applied to each averaged axis.
	ZeroThreshold = 10.0
)

const fullMask = 1<<Size - 1

var (
	// ErrPartialWindow is returned when filtering before every slot is written.
	ErrPartialWindow = errors.New("sample window not full")
	// ErrIndex is returned for a sensor or slot outside the window.
	ErrIndex = errors.New("window index out of range")
)

// Window is a fixed-capacity [sensor][slot] sample store.
type Window struct {
	samples [NumSensors][Size]imu.Vector
	written [NumSensors]uint8 // bit n set once slot n has a sample this round
}

func checkIndex(sensor, slot int) error {
	if sensor < 0 || sensor >= NumSensors || slot < 0 || slot >= Size {
		return fmt.Errorf("sensor %d slot %d: %w", sensor, slot, ErrIndex)
	}
	return nil
}

// Put stores v for sensor in slot.
func (w *Window) Put(sensor, slot int, v imu.Vector) error {
	if err := checkIndex(sensor, slot); err != nil {
		return err
	}
	w.samples[sensor][slot] = v
	w.written[sensor] |= 1 << slot
	return nil
}

// At returns the sample held for sensor in slot.
func (w *Window) At(sensor, slot int) (imu.Vector, error) {
	if err := checkIndex(sensor, slot); err != nil {
		return imu.Vector{}, err
	}
	return w.samples[sensor][slot], nil
}

// SensorFull reports whether every slot of sensor was written this round.
func (w *Window) SensorFull(sensor int) bool {
	if sensor < 0 || sensor >= NumSensors {
		return false
	}
	return w.written[sensor] == fullMask
}

// Full reports whether every sensor has a complete round.
func (w *Window) Full() bool {
	for s := range w.written {
		if w.written[s] != fullMask {
			return false
		}
	}
	return true
}

// Reset starts a new round. Sample values are kept but no longer count as written.
func (w *Window) Reset() {
	w.written = [NumSensors]uint8{}
}

// Filter reduces the window of one sensor to a single smoothed vector.
// Calling it repeatedly without new samples yields the same result.
func (w *Window) Filter(sensor int) (imu.Vector, error) {
	if sensor < 0 || sensor >= NumSensors {
		return imu.Vector{}, fmt.Errorf("sensor %d: %w", sensor, ErrIndex)
	}
	if !w.SensorFull(sensor) {
		return imu.Vector{}, fmt.Errorf("sensor %d: %w", sensor, ErrPartialWindow)
	}
	return Smooth(w.samples[sensor]), nil
}

// Smooth averages one sensor's samples per axis.
func Smooth(samples [Size]imu.Vector) imu.Vector {
	var x, y, z float64
	for _, s := range samples {
		x += float64(s.X)
		y += float64(s.Y)
		z += float64(s.Z)
	}
	return imu.Vector{
		X: smoothAxis(x),
		Y: smoothAxis(y),
		Z: smoothAxis(z),
	}
}

// smoothAxis turns an axis sum into the average, zeroes anything inside the
// dead zone, rounds half away from zero and clamps to int8.
func smoothAxis(sum float64) int8 {
	avg := sum / Size
	if avg < ZeroThreshold && avg > -ZeroThreshold {
		avg = 0
	}
	r := math.Round(avg)
	if r > math.MaxInt8 {
		r = math.MaxInt8
	} else if r < math.MinInt8 {
		r = math.MinInt8
	}
	return int8(r)
}
