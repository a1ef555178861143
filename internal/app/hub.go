// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/sensor_hub/internal/bus"
	"github.com/relabs-tech/sensor_hub/internal/config"
	"github.com/relabs-tech/sensor_hub/internal/netconn"
	"github.com/relabs-tech/sensor_hub/internal/protocol"
	"github.com/relabs-tech/sensor_hub/internal/sensors"
)

// RunHub brings up the sensors and the network and serves socket clients
// until SIGINT or SIGTERM.
func RunHub() error {
	cfg := config.Get()

	if closer, err := SetupSerialLog(cfg.LogSerialPort, cfg.LogSerialBaud); err != nil {
		log.Printf("hub: %v", err)
	} else {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	b, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer b.Close()
	log.Printf("hub: I2C bus %s, multiplexer at 0x%02X", b, cfg.MuxI2CAddr)

	router := bus.NewRouter(b, cfg.MuxI2CAddr)

	display := NewStatusDisplay(nil)
	if cfg.DisplayEnabled {
		if d, err := OpenStatusDisplay(router.Bus()); err != nil {
			log.Printf("hub: display disabled: %v", err)
		} else {
			display = d
		}
	}
	display.SetStatus(StatusBooting)

	accels := sensors.NewAccelerometers(router, cfg.AccelI2CAddr)
	if failed := accels.Init(); failed > 0 {
		log.Printf("hub: %d of 4 accelerometers did not initialize, their axes read as 0", failed)
	}

	ranger := sensors.NewRanger(router.Conn(cfg.ToFPort, cfg.ToFI2CAddr))
	if err := ranger.Init(); err != nil {
		log.Printf("hub: %v", err)
	}

	mgr := netconn.NewManager(
		netconn.NewNMRadio(cfg.WiFiInterface),
		netconn.NewStore(cfg.CredentialsFile),
		netconn.NewExitRestarter(1),
		netconn.Options{
			MaxAttempts: cfg.WiFiMaxAttempts,
			RetryDelay:  time.Duration(cfg.WiFiRetryDelay) * time.Millisecond,
			APSSID:      cfg.APSSID,
			APPassword:  cfg.APPassword,
			OnChange: func(mode netconn.Mode, ssid string) {
				display.SetNetwork(mode.String(), ssid)
			},
		},
	)
	if err := mgr.Boot(ctx); err != nil {
		log.Printf("hub: network boot: %v", err)
	}

	var sinks []protocol.FrameSink
	if cfg.MQTTBroker != "" {
		pub, client, err := ConnectFramePublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.TopicFrames)
		if err != nil {
			log.Printf("hub: telemetry disabled: %v", err)
		} else {
			defer client.Disconnect(250)
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}
	if cfg.MonitorPort > 0 {
		mon := NewMonitor(router, cfg.AccelI2CAddr)
		sinks = append(sinks, mon)
		go func() {
			if err := mon.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.MonitorPort)); err != nil {
				log.Printf("hub: monitor: %v", err)
			}
		}()
	}

	machine := protocol.NewMachine(protocol.Deps{
		Sampler: accels,
		Ranger:  ranger,
		Network: &statusReconnector{next: mgr, display: display},
		Sinks:   sinks,
	})

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	log.Printf("hub: socket server listening on %s", ln.Addr())

	return ServeClients(ctx, ln, machine, display)
}

// SessionServer runs the protocol on one client connection.
type SessionServer interface {
	Serve(ctx context.Context, rw io.ReadWriter) error
}

// ServeClients accepts clients on ln and serves them one at a time. Further
// clients wait in the accept backlog. It returns nil once ctx is cancelled.
func ServeClients(ctx context.Context, ln net.Listener, srv SessionServer, display *StatusDisplay) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	display.SetStatus(StatusReady)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Printf("hub: accept: %v", err)
			continue
		}

		log.Printf("hub: client %s connected", conn.RemoteAddr())
		display.SetClient(conn.RemoteAddr().String())
		display.SetStatus(StatusClientConnected)

		serveOne(ctx, conn, srv)

		log.Printf("hub: client %s disconnected", conn.RemoteAddr())
		display.SetClient("")
		display.SetStatus(StatusReady)
	}
}

func serveOne(ctx context.Context, conn net.Conn, srv SessionServer) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	if err := srv.Serve(connCtx, conn); err != nil && connCtx.Err() == nil {
		log.Printf("hub: session: %v", err)
	}
}

// statusReconnector shows the join in progress on the display.
type statusReconnector struct {
	next    protocol.Reconnector
	display *StatusDisplay
}

func (s *statusReconnector) Reconnect(ssid, password string) error {
	prev := s.display.Status()
	s.display.SetStatus(StatusReconnecting)
	defer s.display.SetStatus(prev)
	return s.next.Reconnect(ssid, password)
}
