package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/sensor_hub/internal/imu"
	"github.com/relabs-tech/sensor_hub/internal/orientation"
)

// RunConsoleMQTT prints every frame published on topic until interrupted.
func RunConsoleMQTT(broker, clientID, topic string) error {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", broker)

	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handleFrameMessage(os.Stdout, msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", topic)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func handleFrameMessage(w io.Writer, payload []byte) {
	var f imu.Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		log.Printf("console: frame unmarshal error: %v", err)
		return
	}
	fmt.Fprintln(w, FormatFrame(f))
}

// FormatFrame renders a frame as one line: per sensor the filtered vector and
// its tilt, then the distance code when present.
func FormatFrame(f imu.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[0x%02X]", f.Command)
	for i, v := range f.Sensors {
		p := orientation.PoseFromVector(v)
		fmt.Fprintf(&b, "  S%d %4d %4d %4d R=%6.1f P=%6.1f", i, v.X, v.Y, v.Z, p.Roll, p.Pitch)
	}
	if f.HasDistance {
		fmt.Fprintf(&b, "  D=%s", FormatDistance(f.Distance))
	}
	return b.String()
}

// FormatDistance turns a distance code back into approximate millimetres.
func FormatDistance(code byte) string {
	switch {
	case code == 0xFF:
		return "invalid"
	case code >= 127:
		return ">1500mm"
	default:
		return fmt.Sprintf("%dmm", int(code)*12)
	}
}
