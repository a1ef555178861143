package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/relabs-tech/sensor_hub/internal/imu"
)

// RegisterReader reads one register of a device behind the multiplexer.
type RegisterReader interface {
	ReadRegister(port uint8, addr uint16, reg byte) (byte, error)
}

// Monitor is the optional live view: the latest frame over HTTP and a
// websocket streaming frames and answering register probes.
type Monitor struct {
	regs      RegisterReader
	accelAddr uint16

	mu      sync.RWMutex
	last    imu.Frame
	have    bool
	clients map[*monitorClient]struct{}
}

// NewMonitor returns a Monitor probing registers through regs. accelAddr is
// used when a probe does not name a device address.
func NewMonitor(regs RegisterReader, accelAddr uint16) *Monitor {
	return &Monitor{
		regs:      regs,
		accelAddr: accelAddr,
		clients:   make(map[*monitorClient]struct{}),
	}
}

// PublishFrame stores f as the latest frame and forwards it to websocket clients.
func (m *Monitor) PublishFrame(f imu.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = f
	m.have = true

	msg := MonitorMessage{Type: "frame", Frame: &f}
	for c := range m.clients {
		select {
		case c.send <- msg:
		default:
			// slow client, skip this frame
		}
	}
}

// Latest returns the last published frame.
func (m *Monitor) Latest() (imu.Frame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.have
}

// Handler returns the HTTP routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()

	// JSON API endpoint: latest frame
	mux.HandleFunc("/api/frame", func(w http.ResponseWriter, r *http.Request) {
		f, ok := m.Latest()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if err := json.NewEncoder(w).Encode(f); err != nil {
			log.Printf("monitor: json encode error: %v", err)
		}
	})

	mux.HandleFunc("/ws", m.handleWS)
	return mux
}

// ListenAndServe serves the monitor on addr until ctx is cancelled.
func (m *Monitor) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("monitor: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
