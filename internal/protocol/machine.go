// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package protocol implements the byte command protocol spoken with the
// socket client.
//
// The client sends one command byte and waits for a fixed-size raw reply; the
// reply length is implied by the command. After CmdPrepareCredentials the next
// unit read from the client is a CredentialSize payload instead of a command.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/sensor_hub/internal/filter"
	"github.com/relabs-tech/sensor_hub/internal/imu"
	"github.com/relabs-tech/sensor_hub/internal/sensors"
)

// Commands understood by the hub.
const (
	CmdSensors            byte = 0xFF
	CmdSensorsDistance    byte = 0x0F
	CmdPrepareCredentials byte = 0x22
	CmdCredentials        byte = 0x44
)

const (
	// AccPackSize is the number of bytes per sensor in a response.
	AccPackSize = 3
	// SockPackSize is the size of a sensors-only response.
	SockPackSize = AccPackSize * filter.NumSensors
	// DistanceIndex is where the distance byte goes in a CmdSensorsDistance reply.
	DistanceIndex = SockPackSize
)

// Buffer is the response assembled for each exchange. Only a prefix is sent.
type Buffer [SockPackSize + 1]byte

// ReadMode tells the machine what the next unit from the client is.
type ReadMode int

const (
	// ModeCommand expects a single command byte.
	ModeCommand ReadMode = iota
	// ModeCredentials expects a CredentialSize payload.
	ModeCredentials
)

func (m ReadMode) String() string {
	switch m {
	case ModeCommand:
		return "command"
	case ModeCredentials:
		return "credentials"
	}
	return fmt.Sprintf("ReadMode(%d)", int(m))
}

// Sampler fills a window with WINDOW rounds of accelerometer samples.
type Sampler interface {
	AcquireWindow(w *filter.Window) (int, error)
}

// RangeFinder takes one distance measurement.
type RangeFinder interface {
	AcquireDistance() (byte, error)
}

// Reconnector persists new credentials and joins the network.
type Reconnector interface {
	Reconnect(ssid, password string) error
}

// FrameSink receives a copy of each sensor frame sent to the client.
// Implementations must not block.
type FrameSink interface {
	PublishFrame(f imu.Frame)
}

// Deps are the collaborators a Machine drives.
type Deps struct {
	Sampler Sampler
	Ranger  RangeFinder
	Network Reconnector
	Sinks   []FrameSink
}

// Machine is the protocol state machine. It owns the sample window and the
// response buffer; it is not safe for concurrent use.
type Machine struct {
	deps         Deps
	window       filter.Window
	buf          Buffer
	mode         ReadMode
	lastDistance byte
	now          func() time.Time
}

// NewMachine returns a Machine in command mode.
func NewMachine(deps Deps) *Machine {
	return &Machine{
		deps:         deps,
		mode:         ModeCommand,
		lastDistance: sensors.DistanceInvalid,
		now:          time.Now,
	}
}

// Mode returns what the next unit read from the client is expected to be.
func (m *Machine) Mode() ReadMode { return m.mode }

// ReadSize returns how many bytes make up the next unit from the client.
func (m *Machine) ReadSize() int {
	if m.mode == ModeCredentials {
		return CredentialSize
	}
	return 1
}

// Window exposes the sample window for inspection.
func (m *Machine) Window() *filter.Window { return &m.window }

// Reset returns to command mode, e.g. when a new client connects.
func (m *Machine) Reset() { m.mode = ModeCommand }

// Handle processes one unit read from the client and returns the bytes to send
// back, or nil when the command has no response.
func (m *Machine) Handle(unit []byte) []byte {
	if len(unit) == 0 {
		return nil
	}
	if m.mode == ModeCredentials {
		return m.Dispatch(CmdCredentials, unit)
	}
	return m.Dispatch(unit[0], nil)
}

// Dispatch runs one command. payload is only used by CmdCredentials.
func (m *Machine) Dispatch(cmd byte, payload []byte) []byte {
	switch cmd {
	case CmdSensors:
		m.acquire()
		return m.buf[:SockPackSize]

	case CmdSensorsDistance:
		m.acquire()
		m.distance()
		return m.buf[:SockPackSize+1]

	case CmdPrepareCredentials:
		m.buf[0] = 0xFF
		m.buf[1] = 0x0F
		for i := 2; i < SockPackSize; i++ {
			m.buf[i] = 0
		}
		m.mode = ModeCredentials
		log.Println("protocol: waiting for credentials payload")
		return m.buf[:SockPackSize]

	case CmdCredentials:
		if payload == nil {
			log.Println("protocol: credentials command without payload ignored")
			return nil
		}
		m.credentials(payload)
		m.mode = ModeCommand
		return nil

	default:
		log.Printf("protocol: ignoring unknown command 0x%02X", cmd)
		return nil
	}
}

// acquire collects a full window and writes the filtered vectors into the buffer.
func (m *Machine) acquire() {
	failed, err := m.deps.Sampler.AcquireWindow(&m.window)
	if err != nil {
		log.Printf("protocol: acquisition error: %v", err)
	}
	if failed > 0 {
		log.Printf("protocol: %d register reads failed this window (sent as 0)", failed)
	}
	for s := 0; s < filter.NumSensors; s++ {
		v, err := m.window.Filter(s)
		if err != nil {
			log.Printf("protocol: filter sensor %d: %v", s, err)
			v = imu.Vector{}
		}
		b := v.Bytes()
		copy(m.buf[s*AccPackSize:], b[:])
	}
}

// distance appends the distance code. When the sensor is not ready the
// previous code is sent again.
func (m *Machine) distance() {
	code, err := m.deps.Ranger.AcquireDistance()
	switch {
	case errors.Is(err, sensors.ErrNotReady):
		log.Printf("protocol: distance not ready, resending 0x%02X", m.lastDistance)
	case err != nil:
		log.Printf("protocol: %v", err)
		m.lastDistance = sensors.DistanceInvalid
	default:
		m.lastDistance = code
	}
	m.buf[DistanceIndex] = m.lastDistance
}

func (m *Machine) credentials(payload []byte) {
	creds, err := ParseCredentials(payload)
	if err != nil {
		log.Printf("protocol: %v, reconnect skipped", err)
		return
	}
	log.Printf("protocol: new network %q received", creds.SSID)
	if m.deps.Network == nil {
		return
	}
	if err := m.deps.Network.Reconnect(creds.SSID, creds.Password); err != nil {
		log.Printf("protocol: reconnect to %q: %v", creds.SSID, err)
	}
}

// ReplySize returns how many bytes the hub answers to cmd.
func ReplySize(cmd byte) int {
	switch cmd {
	case CmdSensors, CmdPrepareCredentials:
		return SockPackSize
	case CmdSensorsDistance:
		return SockPackSize + 1
	}
	return 0
}

// DecodeFrame interprets a sensor reply to cmd.
func DecodeFrame(cmd byte, resp []byte) (imu.Frame, error) {
	if cmd != CmdSensors && cmd != CmdSensorsDistance {
		return imu.Frame{}, fmt.Errorf("command 0x%02X carries no sensor data", cmd)
	}
	if len(resp) != ReplySize(cmd) {
		return imu.Frame{}, fmt.Errorf("reply to 0x%02X: got %d bytes, want %d", cmd, len(resp), ReplySize(cmd))
	}
	f := imu.Frame{
		Command: cmd,
		Sensors: make([]imu.Vector, filter.NumSensors),
	}
	for s := range f.Sensors {
		o := s * AccPackSize
		f.Sensors[s] = imu.Vector{X: int8(resp[o]), Y: int8(resp[o+1]), Z: int8(resp[o+2])}
	}
	if cmd == CmdSensorsDistance {
		f.Distance = resp[DistanceIndex]
		f.HasDistance = true
	}
	return f, nil
}

// Serve runs the request loop on rw until the client goes away or ctx is done.
// A clean client disconnect returns nil.
func (m *Machine) Serve(ctx context.Context, rw io.ReadWriter) error {
	m.Reset()
	var unit [CredentialSize]byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := m.ReadSize()
		if _, err := io.ReadFull(rw, unit[:n]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		cmd := unit[0]
		if n > 1 {
			cmd = CmdCredentials
		}
		resp := m.Handle(unit[:n])
		if len(resp) == 0 {
			continue
		}
		if _, err := rw.Write(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}

		if len(m.deps.Sinks) == 0 {
			continue
		}
		if f, err := DecodeFrame(cmd, resp); err == nil {
			f.Time = m.now().UTC().Format(time.RFC3339)
			for _, s := range m.deps.Sinks {
				s.PublishFrame(f)
			}
		}
	}
}
