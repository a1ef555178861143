package app

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/sensor_hub/internal/imu"
)

// Publisher is the part of mqtt.Client the frame publisher uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// FramePublisher mirrors every frame sent to the socket client onto an MQTT
// topic. PublishFrame never blocks; frames are dropped when the queue is full.
type FramePublisher struct {
	client  Publisher
	topic   string
	queue   chan imu.Frame
	done    chan struct{}
	once    sync.Once
	dropped int
	mu      sync.Mutex
}

// NewFramePublisher starts the publish loop.
func NewFramePublisher(client Publisher, topic string) *FramePublisher {
	p := &FramePublisher{
		client: client,
		topic:  topic,
		queue:  make(chan imu.Frame, 32),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// ConnectFramePublisher connects to broker and returns a publisher plus the
// underlying client for disconnecting on shutdown.
func ConnectFramePublisher(broker, clientID, topic string) (*FramePublisher, mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	connected, err := awaitConnect(client.Connect(), 5*time.Second)
	if err != nil {
		return nil, nil, err
	}
	if connected {
		log.Printf("telemetry: connected to MQTT broker at %s", broker)
	} else {
		log.Printf("telemetry: MQTT broker at %s not reachable yet, retrying in the background", broker)
	}
	return NewFramePublisher(client, topic), client, nil
}

// awaitConnect waits up to timeout for a connect token. A timeout is not an
// error: with connect retry enabled paho keeps trying in the background.
func awaitConnect(token mqtt.Token, timeout time.Duration) (bool, error) {
	if !token.WaitTimeout(timeout) {
		return false, nil
	}
	if err := token.Error(); err != nil {
		return false, err
	}
	return true, nil
}

// PublishFrame queues f for publishing.
func (p *FramePublisher) PublishFrame(f imu.Frame) {
	select {
	case p.queue <- f:
	default:
		p.mu.Lock()
		p.dropped++
		n := p.dropped
		p.mu.Unlock()
		if n == 1 || n%100 == 0 {
			log.Printf("telemetry: queue full, %d frames dropped", n)
		}
	}
}

// Dropped returns how many frames were discarded.
func (p *FramePublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close stops the loop after the queued frames are published. PublishFrame
// must not be called afterwards.
func (p *FramePublisher) Close() {
	p.once.Do(func() {
		close(p.queue)
		<-p.done
	})
}

func (p *FramePublisher) loop() {
	defer close(p.done)
	for f := range p.queue {
		payload, err := json.Marshal(f)
		if err != nil {
			log.Printf("telemetry: json marshal error: %v", err)
			continue
		}
		token := p.client.Publish(p.topic, 0, false, payload)
		if token.WaitTimeout(2*time.Second) && token.Error() != nil {
			log.Printf("telemetry: MQTT publish error: %v", token.Error())
		}
	}
}
