package netconn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// APPrefix marks a stored SSID as the hub's own access point.
const APPrefix = "TheConduc"

// ErrRetriesExhausted is returned when joining failed MaxAttempts times.
// The Restarter has already been invoked by then.
var ErrRetriesExhausted = errors.New("network join retries exhausted")

// Options configure a Manager.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	APSSID      string
	APPassword  string
	// OnChange is called after every successful Connect.
	OnChange func(mode Mode, ssid string)
}

// Manager owns the connection policy: AP or station mode, bounded join
// retries and restart on exhaustion.
type Manager struct {
	radio   Radio
	store   *Store
	restart Restarter
	opts    Options

	mu   sync.Mutex
	mode Mode
	ssid string

	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager returns a Manager. MaxAttempts below 1 is treated as 1.
func NewManager(radio Radio, store *Store, restart Restarter, opts Options) *Manager {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Manager{
		radio:   radio,
		store:   store,
		restart: restart,
		opts:    opts,
		mode:    ModeAP,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the mode and SSID of the last successful Connect.
func (m *Manager) State() (Mode, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode, m.ssid
}

func (m *Manager) set(mode Mode, ssid string) {
	m.mu.Lock()
	m.mode, m.ssid = mode, ssid
	m.mu.Unlock()
	if m.opts.OnChange != nil {
		m.opts.OnChange(mode, ssid)
	}
}

// Connect starts an access point (ModeAP) or joins a network (ModeStation).
//
// In station mode an existing connection is dropped first, then Join is tried
// up to MaxAttempts times with RetryDelay between attempts. When every attempt
// fails the Restarter is invoked and ErrRetriesExhausted returned.
func (m *Manager) Connect(ctx context.Context, mode Mode, ssid, password string) error {
	switch mode {
	case ModeAP:
		log.Printf("netconn: starting access point %q", ssid)
		if err := m.radio.StartAP(ctx, ssid, password); err != nil {
			return fmt.Errorf("start access point: %w", err)
		}
		m.set(ModeAP, ssid)
		return nil

	case ModeStation:
		return m.join(ctx, ssid, password)

	default:
		return fmt.Errorf("unknown mode %d", mode)
	}
}

func (m *Manager) join(ctx context.Context, ssid, password string) error {
	if ok, err := m.radio.Connected(ctx); err != nil {
		log.Printf("netconn: connection state: %v", err)
	} else if ok {
		if err := m.radio.Disconnect(ctx); err != nil {
			log.Printf("netconn: disconnect: %v", err)
		} else {
			log.Println("netconn: disconnected")
		}
	}

	for attempt := 1; ; attempt++ {
		log.Printf("netconn: joining %q (attempt %d/%d)", ssid, attempt, m.opts.MaxAttempts)
		if err := m.radio.Join(ctx, ssid, password); err != nil {
			log.Printf("netconn: join: %v", err)
		}
		if err := m.sleep(ctx, m.opts.RetryDelay); err != nil {
			return err
		}

		ok, err := m.radio.Connected(ctx)
		if err != nil {
			log.Printf("netconn: connection state: %v", err)
		}
		if ok {
			log.Printf("netconn: connected to %q", ssid)
			m.set(ModeStation, ssid)
			return nil
		}

		if attempt >= m.opts.MaxAttempts {
			m.restart.Restart(fmt.Sprintf("unable to join %q after %d attempts", ssid, attempt))
			return ErrRetriesExhausted
		}
	}
}

// Reconnect stores new station credentials and joins that network.
// A failed save is logged and the join still attempted.
func (m *Manager) Reconnect(ssid, password string) error {
	return m.ReconnectContext(context.Background(), ssid, password)
}

// ReconnectContext is Reconnect with a context bounding the retry loop.
func (m *Manager) ReconnectContext(ctx context.Context, ssid, password string) error {
	rec := Record{Mode: ModeStation, SSID: ssid, Password: password}
	if err := m.store.Save(rec); err != nil {
		log.Printf("netconn: save credentials: %v", err)
	}
	return m.Connect(ctx, ModeStation, ssid, password)
}

// Boot brings the network up from the stored record. Without a usable station
// record the configured access point is started. A stored SSID starting with
// APPrefix is the hub's own access point and is started as such.
func (m *Manager) Boot(ctx context.Context) error {
	rec, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, ErrNoRecord) {
			log.Printf("netconn: %v", err)
		}
		return m.Connect(ctx, ModeAP, m.opts.APSSID, m.opts.APPassword)
	}

	if rec.Mode == ModeStation && strings.HasPrefix(rec.SSID, APPrefix) {
		log.Println("netconn: stored network is the hub access point")
		return m.Connect(ctx, ModeAP, rec.SSID, rec.Password)
	}
	if rec.Mode == ModeStation && rec.SSID != "" {
		return m.Connect(ctx, ModeStation, rec.SSID, rec.Password)
	}
	return m.Connect(ctx, ModeAP, m.opts.APSSID, m.opts.APPassword)
}
