package homeassistant

import (
	"fmt"
	"time"

	"baidu-face-go/config"

	log "github.com/sirupsen/logrus"
)

// mqttPublisher is the part of the MQTT client the publisher needs.
type mqttPublisher interface {
	Publish(topic string, payload interface{}) error
	PublishRetain(topic string, payload interface{}) error
	StatusTopic() string
}

// Publisher pushes detection events and group entity state to Home Assistant
// over MQTT. Group sensors mirror the original integration's group entities:
// state is the person count, attributes are the person mapping.
type Publisher struct {
	mqttClient mqttPublisher
	cfg        *config.Config
}

// DetectionEvent is the per-frame payload published for a camera. It carries
// at most one detection.
type DetectionEvent struct {
	Camera     string    `json:"camera"`
	Timestamp  time.Time `json:"timestamp"`
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	GroupID    string    `json:"group_id,omitempty"`
	UserInfo   string    `json:"user_info,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	Matched    bool      `json:"matched"`
}

// GroupState is the retained payload of a group entity.
type GroupState struct {
	GroupID string            `json:"group_id"`
	Count   int               `json:"count"`
	Persons map[string]string `json:"persons"`
}

// NewPublisher creates a new Home Assistant publisher.
func NewPublisher(mqttClient mqttPublisher, cfg *config.Config) *Publisher {
	return &Publisher{
		mqttClient: mqttClient,
		cfg:        cfg,
	}
}

// PublishDetection publishes the result of one processed frame. With a match
// the event is also published under the matched person's topic.
func (p *Publisher) PublishDetection(event DetectionEvent) error {
	topic := fmt.Sprintf("%s/cameras/%s", p.cfg.MQTT.TopicPrefix, event.Camera)
	if err := p.mqttClient.Publish(topic, event); err != nil {
		return fmt.Errorf("failed to publish detection event: %w", err)
	}

	if event.Name != "" {
		matchTopic := fmt.Sprintf("%s/matches/%s", p.cfg.MQTT.TopicPrefix, event.Name)
		if err := p.mqttClient.Publish(matchTopic, event); err != nil {
			return fmt.Errorf("failed to publish match event: %w", err)
		}
	}
	return nil
}

// PublishGroupState publishes the retained state of a group entity.
func (p *Publisher) PublishGroupState(groupID string, persons map[string]string) error {
	stateTopic := fmt.Sprintf("%s/groups/%s/state", p.cfg.MQTT.TopicPrefix, groupID)
	if err := p.mqttClient.PublishRetain(stateTopic, len(persons)); err != nil {
		return fmt.Errorf("failed to publish group state: %w", err)
	}

	attrTopic := fmt.Sprintf("%s/groups/%s/attributes", p.cfg.MQTT.TopicPrefix, groupID)
	state := GroupState{
		GroupID: groupID,
		Count:   len(persons),
		Persons: persons,
	}
	if err := p.mqttClient.PublishRetain(attrTopic, state); err != nil {
		return fmt.Errorf("failed to publish group attributes: %w", err)
	}

	log.Debugf("Published group state for %s (%d persons)", groupID, len(persons))
	return nil
}
