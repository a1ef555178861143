// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/sensor_hub/internal/app"
	"github.com/relabs-tech/sensor_hub/internal/bus"
	"github.com/relabs-tech/sensor_hub/internal/config"
)

func main() {
	configPath := flag.String("config", "./hub_config.txt", "path to configuration file")
	addr := flag.String("addr", ":8081", "listen address")
	flag.Parse()

	log.Println("starting register debug tool (standalone, hub must be stopped)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		log.Fatalf("failed to initialize periph: %v", err)
	}
	b, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		log.Fatalf("failed to open I2C bus: %v", err)
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon := app.NewMonitor(bus.NewRouter(b, cfg.MuxI2CAddr), cfg.AccelI2CAddr)
	log.Printf("connect a websocket to ws://localhost%s/ws", *addr)
	if err := mon.ListenAndServe(ctx, *addr); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
