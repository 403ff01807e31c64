package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/aqualight/internal/protocol"
)

const (
	publishTimeout = 5 * time.Second
	commandConn    = "mqtt"
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Prefix   string
	Buffer   int // offline queue capacity

	// Commands receives control protocol messages from the command topic.
	// If nil the command topic is not subscribed.
	Commands chan<- protocol.Event
}

// RealPublisher publishes to an actual MQTT broker. While the broker is
// unreachable messages are queued and replayed on reconnect.
type RealPublisher struct {
	client   paho.Client
	topics   Topics
	commands chan<- protocol.Event

	mu        sync.Mutex
	queue     *offlineQueue
	connected bool // set after the first successful connect
}

// NewRealPublisher creates a publisher and starts connecting in the
// background. It never blocks on the broker.
func NewRealPublisher(opts Options) *RealPublisher {
	p := newPublisher(opts)

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topics.System, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("mqtt: connection lost")
		})

	p.client = paho.NewClient(co)
	p.client.Connect()
	return p
}

func newPublisher(opts Options) *RealPublisher {
	return &RealPublisher{
		topics:   NewTopics(opts.Prefix),
		commands: opts.Commands,
		queue:    newOfflineQueue(opts.Buffer),
	}
}

// onConnect runs on every (re)connect in its own goroutine.
func (p *RealPublisher) onConnect(c paho.Client) {
	log.WithField("topic", p.topics.Command).Info("mqtt: connected")

	if p.commands != nil {
		tok := c.Subscribe(p.topics.Command, 1, p.handleCommand)
		if tok.WaitTimeout(publishTimeout) && tok.Error() != nil {
			log.WithError(tok.Error()).Error("mqtt: subscribe failed")
		}
	}

	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending := p.queue.drainAll()
	p.mu.Unlock()

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		pending = append(pending, bufferedMsg{topic: p.topics.System, payload: payload, qos: 1})
	}
	for _, m := range pending {
		if err := p.send(m); err != nil {
			log.WithError(err).WithField("topic", m.topic).Warn("mqtt: replay failed")
		}
	}
	if len(pending) > 0 {
		log.WithField("count", len(pending)).Info("mqtt: replayed queued messages")
	}
}

// handleCommand is called by the paho router and must not block.
func (p *RealPublisher) handleCommand(_ paho.Client, msg paho.Message) {
	ev := protocol.Event{
		Kind:    protocol.EventMessage,
		Conn:    commandConn,
		Payload: append([]byte(nil), msg.Payload()...),
		Reply:   p.reply,
	}
	select {
	case p.commands <- ev:
	default:
		log.WithField("topic", msg.Topic()).Warn("mqtt: command queue full, message dropped")
	}
}

func (p *RealPublisher) reply(data []byte) error {
	return p.publish(bufferedMsg{topic: p.topics.Response, payload: data, qos: 1})
}

// PublishState sends the channel levels to the retained state topic.
func (p *RealPublisher) PublishState(state State) error {
	payload, err := FormatStatePayload(state)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.State, payload: payload, qos: 1, retained: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once); lifecycle events should not be lost.
	return p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.queue.push(m)
		p.mu.Unlock()
		return nil
	}
	return p.send(m)
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the client currently holds a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
