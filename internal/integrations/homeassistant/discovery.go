package homeassistant

import (
	"fmt"
	"strings"

	"baidu-face-go/config"

	log "github.com/sirupsen/logrus"
)

// Constants for Home Assistant MQTT Discovery
const (
	// Component type for sensors
	ComponentSensor = "sensor"

	// Node ID under the discovery prefix
	NodeID = "baidu_face"
)

// SensorConfig is the MQTT discovery configuration of a sensor entity.
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string  `json:"value_template,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device groups the published sensors under one device entry.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// DiscoveryManager publishes the discovery configurations so Home Assistant
// materializes the group and camera entities.
type DiscoveryManager struct {
	mqttClient mqttPublisher
	cfg        *config.Config
}

// NewDiscoveryManager creates a new discovery manager.
func NewDiscoveryManager(mqttClient mqttPublisher, cfg *config.Config) *DiscoveryManager {
	return &DiscoveryManager{
		mqttClient: mqttClient,
		cfg:        cfg,
	}
}

func (dm *DiscoveryManager) device() *Device {
	return &Device{
		Identifiers:  []string{"baidu_face_go"},
		Name:         "Baidu Face",
		Manufacturer: "baidu-face-go",
		Model:        "Go Edition",
	}
}

// RegisterGroups publishes one sensor per face group. The sensor state is the
// enrolled person count; the person mapping arrives via the attributes topic.
func (dm *DiscoveryManager) RegisterGroups(groups []string) error {
	device := dm.device()
	for _, groupID := range groups {
		if err := dm.registerGroupSensor(groupID, device); err != nil {
			log.Errorf("Failed to register sensor for group %s: %v", groupID, err)
		}
	}
	return nil
}

func (dm *DiscoveryManager) registerGroupSensor(groupID string, device *Device) error {
	normalized := normalizeName(groupID)

	sensorConfig := SensorConfig{
		Name:                fmt.Sprintf("Baidu Face Group %s", groupID),
		UniqueID:            fmt.Sprintf("baidu_face_group_%s", normalized),
		StateTopic:          fmt.Sprintf("%s/groups/%s/state", dm.cfg.MQTT.TopicPrefix, groupID),
		JSONAttributesTopic: fmt.Sprintf("%s/groups/%s/attributes", dm.cfg.MQTT.TopicPrefix, groupID),
		Icon:                "mdi:account-group",
		AvailabilityTopic:   dm.mqttClient.StatusTopic(),
		PayloadAvailable:    "online",
		PayloadNotAvailable: "offline",
		Device:              device,
	}

	topic := fmt.Sprintf("%s/%s/%s/group_%s/config",
		dm.cfg.MQTT.HomeAssistant.DiscoveryPrefix,
		ComponentSensor,
		NodeID,
		normalized)

	log.Infof("Registering Home Assistant sensor for group: %s", groupID)
	if err := dm.mqttClient.PublishRetain(topic, sensorConfig); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return nil
}

// RegisterCameras publishes one sensor per camera showing the last detection.
func (dm *DiscoveryManager) RegisterCameras(cameras []config.CameraConfig) error {
	device := dm.device()
	for _, cam := range cameras {
		if err := dm.registerCameraSensor(cam, device); err != nil {
			log.Errorf("Failed to register sensor for camera %s: %v", cam.Name, err)
		}
	}
	return nil
}

func (dm *DiscoveryManager) registerCameraSensor(cam config.CameraConfig, device *Device) error {
	normalized := normalizeName(cam.Name)

	sensorConfig := SensorConfig{
		Name:                fmt.Sprintf("Baidu Face %s", cam.Name),
		UniqueID:            fmt.Sprintf("baidu_face_camera_%s", normalized),
		StateTopic:          fmt.Sprintf("%s/cameras/%s", dm.cfg.MQTT.TopicPrefix, cam.Name),
		JSONAttributesTopic: fmt.Sprintf("%s/cameras/%s", dm.cfg.MQTT.TopicPrefix, cam.Name),
		ValueTemplate:       "{{ value_json.name }}",
		Icon:                "mdi:face-recognition",
		AvailabilityTopic:   dm.mqttClient.StatusTopic(),
		PayloadAvailable:    "online",
		PayloadNotAvailable: "offline",
		Device:              device,
	}

	topic := fmt.Sprintf("%s/%s/%s/camera_%s/config",
		dm.cfg.MQTT.HomeAssistant.DiscoveryPrefix,
		ComponentSensor,
		NodeID,
		normalized)

	log.Infof("Registering Home Assistant sensor for camera: %s", cam.Name)
	if err := dm.mqttClient.PublishRetain(topic, sensorConfig); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return nil
}

// normalizeName makes a name usable inside MQTT topics and unique ids.
func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}
