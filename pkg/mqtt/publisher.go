// Package mqtt publishes network selection events to an MQTT broker so
// fleet tooling can observe rove decisions and threshold crossings. The
// publisher is optional; a disabled config turns every call into a no-op.
package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/logx"
)

// Config holds MQTT publisher configuration.
type Config struct {
	Broker      string `json:"broker"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         int    `json:"qos"`
	Retain      bool   `json:"retain"`
	Enabled     bool   `json:"enabled"`
}

// DefaultConfig returns a disabled local-broker configuration.
func DefaultConfig() *Config {
	return &Config{
		Broker:      "localhost",
		Port:        1883,
		ClientID:    "qns",
		TopicPrefix: "qns",
		QoS:         1,
		Enabled:     false,
	}
}

// DecisionEvent reports one rove decision.
type DecisionEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Slot       int       `json:"slot"`
	Capability string    `json:"capability"`
	Direction  string    `json:"direction"`
	Transport  string    `json:"transport"`
	Reason     string    `json:"reason"`
}

// CrossingEvent reports one threshold crossing notification.
type CrossingEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Slot       int       `json:"slot"`
	Capability string    `json:"capability"`
	Transport  string    `json:"transport"`
	Thresholds []string  `json:"thresholds"`
}

// Publisher publishes selection events.
type Publisher struct {
	mu        sync.Mutex
	client    MQTT.Client
	config    *Config
	logger    *logx.Logger
	connected bool
}

// NewPublisher creates a publisher; call Connect before publishing.
func NewPublisher(config *Config, logger *logx.Logger) *Publisher {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logx.NewLogger("info", "mqtt")
	}
	return &Publisher{config: config, logger: logger}
}

// Connect establishes the broker connection. Disabled configs succeed
// without connecting.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.config.Enabled {
		p.logger.Debug("mqtt publisher disabled")
		return nil
	}
	if p.connected {
		return nil
	}

	opts := MQTT.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port))
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	p.client = MQTT.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return fmt.Errorf("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect failed: %w", err)
	}

	p.connected = true
	p.logger.Info("mqtt publisher connected", "broker", p.config.Broker, "port", p.config.Port)
	return nil
}

// PublishDecision publishes a rove decision event.
func (p *Publisher) PublishDecision(ev *DecisionEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return p.publish("decision", ev)
}

// PublishCrossing publishes a threshold crossing event.
func (p *Publisher) PublishCrossing(ev *CrossingEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return p.publish("crossing", ev)
}

func (p *Publisher) publish(topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.config.Enabled || !p.connected {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	full := fmt.Sprintf("%s/%s", p.config.TopicPrefix, topic)
	token := p.client.Publish(full, byte(p.config.QoS), p.config.Retain, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt publish to %s timed out", full)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s failed: %w", full, err)
	}
	p.logger.Debug("published event", "topic", full, "bytes", len(data))
	return nil
}

// Close disconnects from the broker. Safe to call more than once.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected && p.client != nil {
		p.client.Disconnect(250)
		p.connected = false
	}
}

// ThresholdStrings formats thresholds for a crossing event payload.
func ThresholdStrings(ths []pkg.Threshold) []string {
	out := make([]string, len(ths))
	for i, t := range ths {
		out[i] = t.String()
	}
	return out
}
