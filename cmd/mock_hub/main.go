package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/sensor_hub/internal/app"
)

func main() {
	addr := flag.String("addr", ":9000", "listen address")
	broker := flag.String("mqtt", "", "MQTT broker to mirror frames to (e.g. tcp://localhost:1883)")
	topic := flag.String("topic", "hub/frames", "MQTT topic for frames")
	flag.Parse()

	log.Println("starting sensor hub (mock sensors)")

	if err := app.RunMockHub(*addr, *broker, "sensor-hub-mock", *topic); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
