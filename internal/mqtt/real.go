package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/pellet-smoker/internal/appliance"
	"github.com/sweeney/pellet-smoker/internal/logic"
)

// BufferSize is the number of messages held while the broker is unreachable.
const BufferSize = 100

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client paho.Client

	mu  sync.Mutex
	buf *ringBuffer

	// Injected for tests; bound to client by NewRealPublisher.
	connected func() bool
	send      func(msg bufferedMsg) error
}

// NewRealPublisher creates a publisher for the given broker. An unreachable
// broker is not an error: the client keeps retrying in the background. runID
// makes the client ID unique per process and is published in the will.
func NewRealPublisher(broker, clientID, runID string) (*RealPublisher, error) {
	p := &RealPublisher{buf: newRingBuffer(BufferSize)}

	will, err := willPayload(runID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientIDFor(clientID, runID)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			log.Printf("mqtt: connected to %s", broker)
			p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.connected = p.client.IsConnectionOpen
	p.send = p.sendToClient

	// With connect retry the token stays pending until the broker answers;
	// publishes are buffered meanwhile.
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: %s not reachable yet, buffering", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// willPayload is the retained OFFLINE message the broker publishes if the
// connection drops without a disconnect.
func willPayload(runID string, now time.Time) ([]byte, error) {
	return FormatSystemPayload(SystemEvent{Timestamp: now, Event: "OFFLINE", RunID: runID})
}

func clientIDFor(clientID, runID string) string {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	if runID == "" {
		return clientID
	}
	return clientID + "-" + runID
}

// Publish sends a controller event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: transitions and faults must arrive
	return p.publish(bufferedMsg{topic: TopicEvents, payload: payload, qos: 1})
}

// PublishSample sends a control sample to the MQTT broker.
func (p *RealPublisher) PublishSample(sample appliance.Sample) error {
	payload, err := FormatSamplePayload(sample)
	if err != nil {
		return fmt.Errorf("format sample payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: TopicSamples, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.connected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

// publish sends msg, or buffers it while disconnected. A failed send is
// buffered for replay and reported.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected() {
		p.buf.push(msg)
		return nil
	}
	if err := p.send(msg); err != nil {
		p.buf.push(msg)
		return err
	}
	return nil
}

// flush replays buffered messages in order. Messages that fail again are
// re-buffered behind the rest.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.buf.drainAll()
	if len(pending) == 0 {
		return
	}
	log.Printf("mqtt: replaying %d buffered messages", len(pending))
	for i, msg := range pending {
		if err := p.send(msg); err != nil {
			log.Printf("mqtt: replay failed: %v", err)
			for _, rest := range pending[i:] {
				p.buf.push(rest)
			}
			return
		}
	}
}

func (p *RealPublisher) sendToClient(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}
