package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/sensor_hub/internal/app"
	"github.com/relabs-tech/sensor_hub/internal/protocol"
)

func main() {
	addr := flag.String("addr", "192.168.4.1:80", "hub address")
	cmd := flag.String("cmd", "0x0F", "command byte to send (0xFF sensors, 0x0F sensors+distance)")
	count := flag.Int("n", 1, "number of requests, 0 to run until interrupted")
	interval := flag.Duration("interval", 50*time.Millisecond, "delay between requests")
	ssid := flag.String("ssid", "", "send new network credentials instead of polling")
	pswd := flag.String("pswd", "", "password for -ssid")
	flag.Parse()

	c, err := app.DialHub(*addr, 5*time.Second)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer c.Close()

	if *ssid != "" {
		if err := c.SendCredentials(*ssid, *pswd); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		log.Printf("client: credentials for %q sent, the hub is joining that network", *ssid)
		return
	}

	b, err := app.ParsePollCommand(*cmd)
	if err != nil {
		log.Fatalf("fatal: -cmd: %v", err)
	}

	for i := 0; *count == 0 || i < *count; i++ {
		if i > 0 {
			time.Sleep(*interval)
		}
		switch b {
		case protocol.CmdSensors, protocol.CmdSensorsDistance:
			f, raw, err := c.Frame(b == protocol.CmdSensorsDistance)
			if err != nil {
				log.Fatalf("fatal: %v", err)
			}
			fmt.Printf("% X\n%s\n", raw, app.FormatFrame(f))
		default:
			resp, err := c.Request(b)
			if err != nil {
				log.Fatalf("fatal: %v", err)
			}
			fmt.Printf("% X\n", resp)
		}
	}
}
