// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/sensor_hub/internal/imu"
	"github.com/relabs-tech/sensor_hub/internal/sensors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// MonitorMessage is everything the monitor websocket sends.
type MonitorMessage struct {
	Type        string                 `json:"type"` // "frame", "register_data", "register_map", "error"
	Frame       *imu.Frame             `json:"frame,omitempty"`
	Device      string                 `json:"device,omitempty"`
	Port        *uint8                 `json:"port,omitempty"`
	Address     string                 `json:"addr,omitempty"`
	Register    string                 `json:"reg,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
}

type monitorClient struct {
	conn *websocket.Conn
	send chan MonitorMessage
}

// writeLoop owns all writes to the connection. After a write error it keeps
// draining so senders never block.
func (c *monitorClient) writeLoop() {
	var err error
	for msg := range c.send {
		if err != nil {
			continue
		}
		if err = c.conn.WriteJSON(msg); err != nil {
			log.Printf("monitor: websocket write error: %v", err)
		}
	}
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &monitorClient{conn: conn, send: make(chan MonitorMessage, 16)}
	go c.writeLoop()

	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.clients, c)
		close(c.send)
		m.mu.Unlock()
	}()

	// Send register map on connection
	c.send <- registerMapMessage()

	// Message loop
	for {
		var rawMsg map[string]interface{}
		if err := conn.ReadJSON(&rawMsg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("monitor: websocket error: %v", err)
			}
			return
		}

		action, ok := rawMsg["action"].(string)
		if !ok {
			c.send <- errorMessage("missing or invalid action field")
			continue
		}

		switch action {
		case "get_map":
			c.send <- registerMapMessage()
		case "read":
			c.send <- m.handleRead(rawMsg)
		default:
			c.send <- errorMessage(fmt.Sprintf("unknown action: %s", action))
		}
	}
}

// handleRead serves {"action":"read","port":6,"reg":"0x0E"} or
// {"action":"read","sensor":0,"reg":"0x0E"}; "addr" defaults to the accelerometer.
func (m *Monitor) handleRead(rawMsg map[string]interface{}) MonitorMessage {
	regStr, _ := rawMsg["reg"].(string)
	if regStr == "" {
		return errorMessage("missing reg field")
	}
	reg, err := parseHexByte(regStr)
	if err != nil {
		return errorMessage(fmt.Sprintf("invalid register format: %s", regStr))
	}

	var port uint8
	if s, ok := rawMsg["sensor"].(float64); ok {
		p, err := sensors.ResolvePort(int(s))
		if err != nil {
			return errorMessage(err.Error())
		}
		port = p
	} else if p, ok := rawMsg["port"].(float64); ok {
		if p < 0 || p > 7 || p != float64(int(p)) {
			return errorMessage(fmt.Sprintf("invalid port: %v", p))
		}
		port = uint8(p)
	} else {
		return errorMessage("missing port or sensor field")
	}

	addr := m.accelAddr
	if a, _ := rawMsg["addr"].(string); a != "" {
		v, err := parseHexByte(a)
		if err != nil || v > 0x7F {
			return errorMessage(fmt.Sprintf("invalid address format: %s", a))
		}
		addr = uint16(v)
	}

	value, err := m.regs.ReadRegister(port, addr, reg)
	if err != nil {
		return errorMessage(fmt.Sprintf("read error: %v", err))
	}

	return MonitorMessage{
		Type:      "register_data",
		Port:      &port,
		Address:   fmt.Sprintf("0x%02X", addr),
		Register:  fmt.Sprintf("0x%02X", reg),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func registerMapMessage() MonitorMessage {
	return MonitorMessage{
		Type:        "register_map",
		Device:      "mc3416",
		RegisterMap: sensors.MC3416RegisterMap(),
	}
}

func errorMessage(message string) MonitorMessage {
	return MonitorMessage{Type: "error", Message: message}
}

// parseHexByte accepts Go literals ("0x0E", "14") and bare hex ("0E").
func parseHexByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		v, err = strconv.ParseUint(s, 16, 8)
		if err != nil {
			return 0, err
		}
	}
	return byte(v), nil
}
