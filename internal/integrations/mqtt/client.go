package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"baidu-face-go/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Client wraps the paho MQTT client used to publish detection events and
// Home Assistant discovery configurations.
type Client struct {
	config      config.MQTTConfig
	client      mqtt.Client
	isConnected bool
}

// NewClient creates a new MQTT client.
func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{
		config: cfg,
	}
}

// StatusTopic is the availability topic announced to Home Assistant.
func (c *Client) StatusTopic() string {
	return fmt.Sprintf("%s/status", c.config.TopicPrefix)
}

// Start connects the client to the broker.
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()

	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	// Mark the service offline if the connection drops without a clean stop
	opts.SetWill(c.StatusTopic(), "offline", 1, true)

	c.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to connect to MQTT broker: %v", token.Error())
		return token.Error()
	}

	log.Info("MQTT client connected successfully")
	return nil
}

// Stop disconnects the client, announcing the service offline first.
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		if err := c.PublishRetain(c.StatusTopic(), "offline"); err != nil {
			log.Warnf("Failed to publish offline status: %v", err)
		}
		c.client.Disconnect(250)
		c.isConnected = false
		log.Info("MQTT client disconnected")
	}
}

// IsConnected reports whether the client is connected to the broker.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

func (c *Client) onConnectHandler(client mqtt.Client) {
	log.Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)
	c.isConnected = true

	if err := c.PublishRetain(c.StatusTopic(), "online"); err != nil {
		log.Errorf("Failed to publish online status: %v", err)
	}
}

func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v", err)
	c.isConnected = false
}

// PublishMessage publishes a payload to a topic, marshalling objects to JSON.
func (c *Client) PublishMessage(topic string, payload interface{}, retain bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	var payloadBytes []byte
	var err error

	switch p := payload.(type) {
	case string:
		payloadBytes = []byte(p)
	case []byte:
		payloadBytes = p
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		payloadBytes = []byte(fmt.Sprintf("%v", p))
	default:
		payloadBytes, err = json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
	}

	token := c.client.Publish(topic, 1, retain, payloadBytes)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, token.Error())
	}

	log.Debugf("Published message to topic: %s", topic)
	return nil
}

// PublishRetain publishes a message with the retain flag set.
func (c *Client) PublishRetain(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, true)
}

// Publish publishes a message without the retain flag.
func (c *Client) Publish(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, false)
}
