// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus routes I2C traffic through the 8-port multiplexer.
//
// The Router is the only owner of the "currently selected port" state. Every
// port-dependent transaction goes through it so that redundant port switches
// can be skipped without the state ever drifting from the hardware.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// NumPorts is the number of downstream channels on the multiplexer.
const NumPorts = 8

const noPort = -1

var (
	// ErrBus reports a failed (unacknowledged) I2C transaction.
	ErrBus = errors.New("i2c transaction failed")
	// ErrPortRange reports a multiplexer port outside 0..NumPorts-1.
	ErrPortRange = errors.New("multiplexer port out of range")
)

// Router serialises access to a shared I2C bus sitting behind a multiplexer.
type Router struct {
	mu      sync.Mutex
	bus     i2c.Bus
	mux     i2c.Dev
	current int
	selects int
}

// NewRouter returns a Router for the multiplexer at muxAddr on b.
// No port is considered selected until the first successful SelectPort.
func NewRouter(b i2c.Bus, muxAddr uint16) *Router {
	return &Router{
		bus:     b,
		mux:     i2c.Dev{Bus: b, Addr: muxAddr},
		current: noPort,
	}
}

// SelectPort routes subsequent traffic to port by writing the bitmask 1<<port
// to the multiplexer. On failure the selected port becomes unknown.
func (r *Router) SelectPort(port uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectLocked(port)
}

func (r *Router) selectLocked(port uint8) error {
	if port >= NumPorts {
		return fmt.Errorf("select port %d: %w", port, ErrPortRange)
	}
	r.selects++
	if err := r.mux.Tx([]byte{1 << port}, nil); err != nil {
		r.current = noPort
		return fmt.Errorf("select port %d: %w: %w", port, ErrBus, err)
	}
	r.current = int(port)
	return nil
}

func (r *Router) ensurePortLocked(port uint8) error {
	if r.current == int(port) {
		return nil
	}
	return r.selectLocked(port)
}

// CurrentPort returns the selected port, or false when it is unknown.
func (r *Router) CurrentPort() (uint8, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == noPort {
		return 0, false
	}
	return uint8(r.current), true
}

// Selects returns how many port switches have been issued so far.
func (r *Router) Selects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selects
}

// Tx performs one transaction with the device at addr on the given port.
// A write followed by a read is issued as a single repeated-start transfer.
func (r *Router) Tx(port uint8, addr uint16, w, rd []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensurePortLocked(port); err != nil {
		return err
	}
	if err := r.bus.Tx(addr, w, rd); err != nil {
		return fmt.Errorf("tx port %d addr 0x%02X: %w: %w", port, addr, ErrBus, err)
	}
	return nil
}

// ReadRegister fetches one register byte from addr on port.
//
// On failure the returned value is 0 alongside the error. Callers that swallow
// the error must treat 0 as ambiguous.
func (r *Router) ReadRegister(port uint8, addr uint16, reg byte) (byte, error) {
	var out [1]byte
	if err := r.Tx(port, addr, []byte{reg}, out[:]); err != nil {
		return 0, fmt.Errorf("read reg 0x%02X: %w", reg, err)
	}
	return out[0], nil
}

// WriteRegister writes value into register reg of addr on port.
func (r *Router) WriteRegister(port uint8, addr uint16, reg, value byte) error {
	if err := r.Tx(port, addr, []byte{reg, value}, nil); err != nil {
		return fmt.Errorf("write reg 0x%02X: %w", reg, err)
	}
	return nil
}

// Conn returns a handle bound to one device behind the multiplexer.
func (r *Router) Conn(port uint8, addr uint16) *Conn {
	return &Conn{router: r, port: port, addr: addr}
}

// Bus returns an i2c.Bus for devices wired upstream of the multiplexer.
// Transactions on it are serialised with the routed ones.
func (r *Router) Bus() i2c.Bus {
	return &lockedBus{r: r}
}

// Conn is a device handle that always talks through its multiplexer port.
// It implements conn.Conn, so register helpers such as mmr.Dev16 can sit on it.
type Conn struct {
	router *Router
	port   uint8
	addr   uint16
}

// Tx implements conn.Conn.
func (c *Conn) Tx(w, r []byte) error {
	return c.router.Tx(c.port, c.addr, w, r)
}

// Duplex implements conn.Conn. I2C is always half duplex.
func (c *Conn) Duplex() conn.Duplex { return conn.Half }

// Port returns the multiplexer port the device sits on.
func (c *Conn) Port() uint8 { return c.port }

func (c *Conn) String() string {
	return fmt.Sprintf("%s/port%d@0x%02X", c.router.bus, c.port, c.addr)
}

var _ conn.Conn = &Conn{}

type lockedBus struct {
	r *Router
}

func (l *lockedBus) String() string {
	return l.r.bus.String()
}

func (l *lockedBus) Tx(addr uint16, w, r []byte) error {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	return l.r.bus.Tx(addr, w, r)
}

func (l *lockedBus) SetSpeed(f physic.Frequency) error {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	return l.r.bus.SetSpeed(f)
}
