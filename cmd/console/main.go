// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/sensor_hub/internal/app"
	"github.com/relabs-tech/sensor_hub/internal/config"
)

func main() {
	configPath := flag.String("config", "./hub_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting sensor hub console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		log.Fatalf("MQTT_BROKER is not set in %s", *configPath)
	}

	if err := app.RunConsoleMQTT(cfg.MQTTBroker, cfg.MQTTClientID+"-console", cfg.TopicFrames); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
