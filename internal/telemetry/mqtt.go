// Package telemetry publishes loop events to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/logic/control"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	DefaultTopicPrefix = "scango"
	connectTimeout     = 10 * time.Second
	publishTimeout     = 2 * time.Second
	disconnectQuiesce  = 250 // ms
	backlog            = 32
)

// Config selects the broker and topic prefix.
type Config struct {
	Broker      string // host:port, or a full URL
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
}

// ClientFactory builds the MQTT client; tests substitute a fake.
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// DefaultClientFactory returns a paho client.
func DefaultClientFactory(opts *mqtt.ClientOptions) mqtt.Client {
	return mqtt.NewClient(opts)
}

// Topic returns the topic events of kind k are published on.
func Topic(prefix string, k control.Kind) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return strings.TrimSuffix(prefix, "/") + "/events/" + string(k)
}

// Publisher is a control.Sink that forwards events to MQTT at QoS 0.
// Publish never blocks: events are queued and sent from a background
// goroutine, and dropped when the queue is full.
type Publisher struct {
	cfg     Config
	factory ClientFactory
	client  mqtt.Client

	events   chan control.Event
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPublisher(cfg Config, factory ClientFactory) *Publisher {
	if factory == nil {
		factory = DefaultClientFactory
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "scango-" + uuid.New().String()[:8]
	}
	return &Publisher{
		cfg:     cfg,
		factory: factory,
		events:  make(chan control.Event, backlog),
		stopCh:  make(chan struct{}),
	}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Start connects to the broker and starts the publishing goroutine.
func (p *Publisher) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.OnConnect = func(_ mqtt.Client) {
		debug.Info("MQTT: connected to %s", p.cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		debug.Warn("MQTT: connection lost: %v", err)
	}

	p.client = p.factory(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// Ends the background connect retry.
		p.client.Disconnect(0)
		return fmt.Errorf("failed to connect to MQTT broker %s: timeout", p.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		p.client.Disconnect(0)
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", p.cfg.Broker, err)
	}

	debug.Info("MQTT: publishing to %s/events/#", p.cfg.TopicPrefix)

	p.wg.Add(1)
	go p.run()
	return nil
}

// Publish queues an event.
func (p *Publisher) Publish(e control.Event) {
	select {
	case <-p.stopCh:
		return
	default:
	}

	select {
	case p.events <- e:
	default:
		debug.Verbose("MQTT: backlog full, dropping %s event", e.Kind)
	}
}

// Stop flushes queued events and disconnects.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		if p.client != nil && p.client.IsConnected() {
			p.client.Disconnect(disconnectQuiesce)
		}
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()

	for {
		select {
		case e := <-p.events:
			p.send(e)
		case <-p.stopCh:
			for {
				select {
				case e := <-p.events:
					p.send(e)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) send(e control.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		debug.Error(fmt.Errorf("mqtt: marshal event: %w", err))
		return
	}

	topic := Topic(p.cfg.TopicPrefix, e.Kind)
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		debug.Warn("MQTT: publish to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		debug.Error(fmt.Errorf("mqtt: publish to %s: %w", topic, err))
		return
	}
	debug.Trace("MQTT: published %s", topic)
}
