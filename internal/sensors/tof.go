// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/mmr"
)

// VL53L1X registers (16-bit addresses, big endian on the wire).
const (
	vlRegModelID        = 0x010F
	vlRegGPIOHVMuxCtrl  = 0x0030
	vlRegGPIOTIOHVState = 0x0031
	vlRegInterruptClear = 0x0086
	vlRegModeStart      = 0x0087
	vlRegRangeMM        = 0x0096

	vlModelID      = 0xEACC
	vlStartRanging = 0x40
)

// Distance codes sent to the client.
const (
	// DistanceSaturated is sent for MaxDistanceMM and anything further.
	DistanceSaturated byte = 127
	// DistanceInvalid flags a failed or zero reading.
	DistanceInvalid byte = 0xFF
	// MaxDistanceMM is where the scale saturates.
	MaxDistanceMM = 1500
	// distanceDivisor maps 0..1500 mm onto 0..125.
	distanceDivisor = 12
	// maxDistanceCode is the largest code that is not treated as an error.
	maxDistanceCode = 250
)

var (
	// ErrNotReady is returned when the sensor has no new measurement.
	// No reading is taken and the caller decides what to send instead.
	ErrNotReady = errors.New("ranging data not ready")
	// ErrRanging is returned when a measurement failed or was invalid.
	ErrRanging = errors.New("ranging failed")
)

// Ranger reads the VL53L1X time-of-flight sensor.
type Ranger struct {
	regs     mmr.Dev16
	polarity byte // value of the GPIO status bit meaning "data ready"
}

// NewRanger returns a Ranger talking over c, usually a bus.Conn bound to the
// sensor's multiplexer port. Init must be called before use.
func NewRanger(c conn.Conn) *Ranger {
	return &Ranger{
		regs:     mmr.Dev16{Conn: c, Order: binary.BigEndian},
		polarity: 1,
	}
}

// Init verifies the model ID, reads the interrupt polarity and starts
// continuous ranging.
func (r *Ranger) Init() error {
	got, err := r.regs.ReadUint16(vlRegModelID)
	if err != nil {
		return fmt.Errorf("tof: read model id: %w", err)
	}
	if got != vlModelID {
		return fmt.Errorf("tof: unexpected model id 0x%04X (want 0x%04X)", got, vlModelID)
	}

	ctrl, err := r.regs.ReadUint8(vlRegGPIOHVMuxCtrl)
	if err != nil {
		return fmt.Errorf("tof: read gpio mux: %w", err)
	}
	// Bit 4 set means active-low interrupt, so "ready" reads as 0.
	if ctrl&0x10 != 0 {
		r.polarity = 0
	} else {
		r.polarity = 1
	}

	if err := r.regs.WriteUint8(vlRegInterruptClear, 0x01); err != nil {
		return fmt.Errorf("tof: clear interrupt: %w", err)
	}
	if err := r.regs.WriteUint8(vlRegModeStart, vlStartRanging); err != nil {
		return fmt.Errorf("tof: start ranging: %w", err)
	}
	log.Printf("tof: ranging started (ready polarity %d)", r.polarity)
	return nil
}

// DataReady polls the sensor's data-ready status bit.
func (r *Ranger) DataReady() (bool, error) {
	st, err := r.regs.ReadUint8(vlRegGPIOTIOHVState)
	if err != nil {
		return false, err
	}
	return st&0x01 == r.polarity, nil
}

// DistanceMM reads the last measured distance in millimetres.
func (r *Ranger) DistanceMM() (uint16, error) {
	return r.regs.ReadUint16(vlRegRangeMM)
}

// ClearInterrupt arms the sensor for the next measurement.
func (r *Ranger) ClearInterrupt() error {
	return r.regs.WriteUint8(vlRegInterruptClear, 0x01)
}

// AcquireDistance takes one measurement and scales it to a one-byte code.
//
// When the sensor is not ready ErrNotReady is returned and no measurement is
// taken. Failed or zero readings return DistanceInvalid with ErrRanging.
func (r *Ranger) AcquireDistance() (byte, error) {
	ready, err := r.DataReady()
	if err != nil {
		return DistanceInvalid, fmt.Errorf("%w: data ready: %w", ErrRanging, err)
	}
	if !ready {
		return 0, ErrNotReady
	}

	mm, err := r.DistanceMM()
	if err != nil {
		return DistanceInvalid, fmt.Errorf("%w: distance: %w", ErrRanging, err)
	}
	if err := r.ClearInterrupt(); err != nil {
		log.Printf("tof: clear interrupt: %v", err)
	}

	code := ScaleDistance(mm)
	if code == DistanceInvalid {
		return code, fmt.Errorf("%w: reading %d mm", ErrRanging, mm)
	}
	return code, nil
}

// ScaleDistance maps a millimetre reading onto the one-byte wire code:
// 1500 and above saturate at 127, positive readings become mm/12, zero is invalid.
// Any code above 250 is reported as DistanceInvalid.
func ScaleDistance(mm uint16) byte {
	var code int
	switch {
	case mm >= MaxDistanceMM:
		code = int(DistanceSaturated)
	case mm > 0:
		code = int(mm) / distanceDivisor
	default:
		return DistanceInvalid
	}
	if code < 0 || code > maxDistanceCode {
		return DistanceInvalid
	}
	return byte(code)
}
