// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/sensor_hub/internal/filter"
	"github.com/relabs-tech/sensor_hub/internal/imu"
	"github.com/relabs-tech/sensor_hub/internal/protocol"
	"github.com/relabs-tech/sensor_hub/internal/sensors"
)

// gravityCounts is 1 g on the accelerometer's 8-bit scale.
const gravityCounts = 64

// MockSensors generates smoothly changing accelerometer and distance data
// for running the hub without hardware.
type MockSensors struct {
	start time.Time
	now   func() time.Time
}

// NewMockSensors returns a generator starting now.
func NewMockSensors() *MockSensors {
	return &MockSensors{start: time.Now(), now: time.Now}
}

func (m *MockSensors) elapsed() float64 {
	return m.now().Sub(m.start).Seconds()
}

// Vector returns the simulated reading of sensor at the current time: gravity
// seen through a slowly swinging limb, each sensor phase shifted.
func (m *MockSensors) Vector(sensor int) imu.Vector {
	t := m.elapsed() + float64(sensor)*0.8
	roll := 0.6 * math.Sin(t)
	pitch := 0.4 * math.Cos(t*0.7)
	return imu.Vector{
		X: int8(math.Round(-gravityCounts * math.Sin(pitch))),
		Y: int8(math.Round(gravityCounts * math.Sin(roll) * math.Cos(pitch))),
		Z: int8(math.Round(gravityCounts * math.Cos(roll) * math.Cos(pitch))),
	}
}

// AcquireWindow fills every slot with the current simulated readings.
func (m *MockSensors) AcquireWindow(w *filter.Window) (int, error) {
	w.Reset()
	for slot := 0; slot < filter.Size; slot++ {
		for s := 0; s < filter.NumSensors; s++ {
			if err := w.Put(s, slot, m.Vector(s)); err != nil {
				return 0, err
			}
		}
	}
	return 0, nil
}

// AcquireDistance sweeps between 100 mm and 1400 mm.
func (m *MockSensors) AcquireDistance() (byte, error) {
	mm := 750 + 650*math.Sin(m.elapsed()*0.5)
	return sensors.ScaleDistance(uint16(mm)), nil
}

type logReconnector struct{}

func (logReconnector) Reconnect(ssid, _ string) error {
	log.Printf("mock: would join network %q", ssid)
	return nil
}

// RunMockHub serves simulated sensor data on addr until interrupted.
// Frames are mirrored to MQTT when broker is set.
func RunMockHub(addr, broker, clientID, topic string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []protocol.FrameSink
	if broker != "" {
		pub, client, err := ConnectFramePublisher(broker, clientID, topic)
		if err != nil {
			return fmt.Errorf("MQTT connect error: %w", err)
		}
		defer client.Disconnect(250)
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	mock := NewMockSensors()
	machine := protocol.NewMachine(protocol.Deps{
		Sampler: mock,
		Ranger:  mock,
		Network: logReconnector{},
		Sinks:   sinks,
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("mock: serving simulated sensors on %s", ln.Addr())
	return ServeClients(ctx, ln, machine, NewStatusDisplay(nil))
}
