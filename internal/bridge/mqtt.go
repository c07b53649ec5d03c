package bridge

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oblq/argonone/internal/argonone"
)

// DefaultTopicPrefix is prepended to every topic.
const DefaultTopicPrefix = "argonone"

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// ClientOptions returns auto-reconnecting client options. Subscriptions
// belong in the on-connect handler so they are restored after a reconnect.
func (c *MQTTConfig) ClientOptions(logger *log.Logger) *mqtt.ClientOptions {
	broker := c.Broker
	if !strings.Contains(broker, "://") {
		broker = fmt.Sprintf("tcp://%v", broker)
	}
	if !strings.Contains(strings.TrimPrefix(broker, "tcp://"), ":") {
		broker += ":1883"
	}

	return mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.ClientID).
		SetUsername(c.Username).
		SetPassword(c.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(client mqtt.Client, err error) {
			logger.Printf("MQTT connection lost: %v", err)
		}).
		SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
			logger.Printf("MQTT reconnecting")
		})
}

// MQTTClient is the subset of mqtt.Client used by the Publisher.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Publisher mirrors the device state on retained topics and forwards
// commands received on the command topics.
type Publisher struct {
	prefix string
	device Device
	logger *log.Logger

	mutex     sync.Mutex
	published *argonone.DeviceState
}

func NewPublisher(prefix string, device Device, logger *log.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{prefix: prefix, device: device, logger: logger}
}

func (p *Publisher) topic(suffix string) string {
	return p.prefix + "/" + suffix
}

// Subscribe installs the command handlers.
func (p *Publisher) Subscribe(client MQTTClient) {
	if t := client.Subscribe(p.topic("fan/cmd"), 0, func(_ mqtt.Client, msg mqtt.Message) {
		preset := argonone.Preset(strings.TrimSpace(string(msg.Payload())))
		if err := p.device.ApplyPreset(preset); err != nil {
			p.logger.Printf("MQTT fan command: %v", err)
		}
	}); t.Wait() && t.Error() != nil {
		p.logger.Printf("MQTT subscribe error: %v", t.Error())
	}

	if t := client.Subscribe(p.topic("fan/speed/cmd"), 0, func(_ mqtt.Client, msg mqtt.Message) {
		speed, err := strconv.Atoi(strings.TrimSpace(string(msg.Payload())))
		if err != nil || speed < 0 {
			p.logger.Printf("MQTT fan speed command: invalid speed %q", msg.Payload())
			return
		}
		if err = p.device.SetFanControl(false, speed); err != nil {
			p.logger.Printf("MQTT fan speed command: %v", err)
		}
	}); t.Wait() && t.Error() != nil {
		p.logger.Printf("MQTT subscribe error: %v", t.Error())
	}
}

// Publish sends every value that differs from the last published state.
func (p *Publisher) Publish(client MQTTClient) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	s := p.device.State()
	last := p.published

	if last == nil || last.FanSpeed != s.FanSpeed {
		if !p.publish(client, "fan/speed", strconv.Itoa(s.FanSpeed)) {
			return
		}
	}
	if last == nil || last.FanControlEnabled != s.FanControlEnabled {
		mode := "held"
		if s.FanControlEnabled {
			mode = "auto"
		}
		if !p.publish(client, "fan/control", mode) {
			return
		}
	}
	if s.HasTemperature && (last == nil || !last.HasTemperature || last.Temperature != s.Temperature) {
		if !p.publish(client, "temperature", strconv.FormatFloat(s.Temperature, 'f', 1, 64)) {
			return
		}
	}

	p.published = &s
}

func (p *Publisher) publish(client MQTTClient, suffix, value string) bool {
	if t := client.Publish(p.topic(suffix), 0, true, value); t.Wait() && t.Error() != nil {
		p.logger.Printf("MQTT publishing failed: %v", t.Error())
		return false
	}
	return true
}
