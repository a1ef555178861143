// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"github.com/relabs-tech/sensor_hub/internal/filter"
	"github.com/relabs-tech/sensor_hub/internal/imu"
)

// MC3416 registers used by the hub.
const (
	RegDevStat = 0x05
	RegMode    = 0x07
	RegXOutLo  = 0x0D
	RegXOutHi  = 0x0E
	RegYOutLo  = 0x0F
	RegYOutHi  = 0x10
	RegZOutLo  = 0x11
	RegZOutHi  = 0x12

	// ModeWake puts the MC3416 in WAKE with watchdog and interrupts disabled.
	ModeWake = 0x01
)

// portMap maps logical sensor index to multiplexer port. The ports are not
// consecutive because of how the harness is wired.
var portMap = [filter.NumSensors]uint8{6, 0, 4, 5}

// ResolvePort returns the multiplexer port of logical sensor i.
func ResolvePort(i int) (uint8, error) {
	if i < 0 || i >= len(portMap) {
		return 0, fmt.Errorf("sensor %d: %w", i, filter.ErrIndex)
	}
	return portMap[i], nil
}

// DecodeAxis interprets an axis MSB as a signed acceleration count.
// Only the high byte is used; the low byte carries no useful precision here.
func DecodeAxis(hi byte) int8 {
	return int8(hi)
}

// Decode12Bit converts an MXC400x style 12-bit reading (8 MSBs in hi, 4 LSBs in
// the top nibble of lo) to the same signed 8-bit scale as DecodeAxis.
// Kept for boards still fitted with the older accelerometer.
func Decode12Bit(hi, lo byte) int8 {
	raw := int16(hi)<<4 | int16(lo>>4)
	if hi > 127 {
		raw -= 1 << 12
	}
	return int8(raw / 16)
}

// RegisterBus is the register-level access the accelerometers need.
type RegisterBus interface {
	ReadRegister(port uint8, addr uint16, reg byte) (byte, error)
	WriteRegister(port uint8, addr uint16, reg, value byte) error
}

// Accelerometers samples every MC3416 behind the multiplexer.
type Accelerometers struct {
	bus  RegisterBus
	addr uint16
}

// NewAccelerometers returns a sampler for sensors answering at addr.
func NewAccelerometers(b RegisterBus, addr uint16) *Accelerometers {
	return &Accelerometers{bus: b, addr: addr}
}

// Init wakes every accelerometer. Failures are logged per sensor and the
// number of sensors that did not answer is returned.
func (a *Accelerometers) Init() int {
	failed := 0
	for i := 0; i < filter.NumSensors; i++ {
		port := portMap[i]
		if err := a.wake(port); err != nil {
			log.Printf("accel %d (port %d): init failed: %v", i, port, err)
			failed++
			continue
		}
		log.Printf("accel %d (port %d): awake", i, port)
	}
	return failed
}

func (a *Accelerometers) wake(port uint8) error {
	status, err := a.bus.ReadRegister(port, a.addr, RegDevStat)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if err := a.bus.WriteRegister(port, a.addr, RegMode, ModeWake); err != nil {
		return fmt.Errorf("set wake mode: %w", err)
	}
	after, err := a.bus.ReadRegister(port, a.addr, RegDevStat)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	// First conversion result, discarded.
	if _, err := a.bus.ReadRegister(port, a.addr, RegXOutHi); err != nil {
		return fmt.Errorf("read x: %w", err)
	}
	log.Printf("accel port %d: status 0x%02X -> 0x%02X", port, status, after)
	return nil
}

// ReadAxes reads one sample from the sensor on port. Each failed register read
// contributes 0 to the vector; the number of failed reads is returned.
func (a *Accelerometers) ReadAxes(port uint8) (imu.Vector, int) {
	failed := 0
	read := func(reg byte) int8 {
		v, err := a.bus.ReadRegister(port, a.addr, reg)
		if err != nil {
			failed++
		}
		return DecodeAxis(v)
	}
	v := imu.Vector{
		X: read(RegXOutHi),
		Y: read(RegYOutHi),
		Z: read(RegZOutHi),
	}
	return v, failed
}

// AcquireRound samples every sensor once and stores the vectors in slot.
// Register failures never abort the round; their count is returned.
func (a *Accelerometers) AcquireRound(w *filter.Window, slot int) (int, error) {
	if slot < 0 || slot >= filter.Size {
		return 0, fmt.Errorf("slot %d: %w", slot, filter.ErrIndex)
	}
	failed := 0
	for i := 0; i < filter.NumSensors; i++ {
		v, n := a.ReadAxes(portMap[i])
		failed += n
		if err := w.Put(i, slot, v); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

// AcquireWindow runs filter.Size rounds, filling slots 0..Size-1.
// It blocks until the whole window is collected.
func (a *Accelerometers) AcquireWindow(w *filter.Window) (int, error) {
	w.Reset()
	failed := 0
	for slot := 0; slot < filter.Size; slot++ {
		n, err := a.AcquireRound(w, slot)
		failed += n
		if err != nil {
			return failed, err
		}
	}
	return failed, nil
}
