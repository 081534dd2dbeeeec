package homeassistant

import (
	"encoding/json"
	"testing"
	"time"

	"baidu-face-go/config"
)

type publishedMessage struct {
	topic   string
	payload interface{}
	retain  bool
}

type fakeMQTT struct {
	messages []publishedMessage
}

func (f *fakeMQTT) Publish(topic string, payload interface{}) error {
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: payload})
	return nil
}

func (f *fakeMQTT) PublishRetain(topic string, payload interface{}) error {
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: payload, retain: true})
	return nil
}

func (f *fakeMQTT) StatusTopic() string {
	return "baidu-face/status"
}

func testHAConfig() *config.Config {
	return &config.Config{
		MQTT: config.MQTTConfig{
			TopicPrefix: "baidu-face",
			HomeAssistant: config.HomeAssistantConfig{
				Enabled:         true,
				DiscoveryPrefix: "homeassistant",
			},
		},
	}
}

func TestPublishDetectionTopics(t *testing.T) {
	mqttClient := &fakeMQTT{}
	pub := NewPublisher(mqttClient, testHAConfig())

	event := DetectionEvent{
		Camera:     "front_door",
		Timestamp:  time.Now(),
		Name:       "u1",
		Confidence: 92,
		Matched:    true,
	}
	if err := pub.PublishDetection(event); err != nil {
		t.Fatalf("PublishDetection failed: %v", err)
	}

	if len(mqttClient.messages) != 2 {
		t.Fatalf("published %d messages, want camera + match topic", len(mqttClient.messages))
	}
	if got := mqttClient.messages[0].topic; got != "baidu-face/cameras/front_door" {
		t.Errorf("camera topic = %q", got)
	}
	if got := mqttClient.messages[1].topic; got != "baidu-face/matches/u1" {
		t.Errorf("match topic = %q", got)
	}
}

func TestPublishDetectionWithoutMatchSkipsMatchTopic(t *testing.T) {
	mqttClient := &fakeMQTT{}
	pub := NewPublisher(mqttClient, testHAConfig())

	if err := pub.PublishDetection(DetectionEvent{Camera: "front_door"}); err != nil {
		t.Fatalf("PublishDetection failed: %v", err)
	}

	if len(mqttClient.messages) != 1 {
		t.Fatalf("published %d messages, want camera topic only", len(mqttClient.messages))
	}
}

func TestPublishGroupState(t *testing.T) {
	mqttClient := &fakeMQTT{}
	pub := NewPublisher(mqttClient, testHAConfig())

	persons := map[string]string{"p1": "p1", "p2": "p2"}
	if err := pub.PublishGroupState("g1", persons); err != nil {
		t.Fatalf("PublishGroupState failed: %v", err)
	}

	if len(mqttClient.messages) != 2 {
		t.Fatalf("published %d messages, want state + attributes", len(mqttClient.messages))
	}

	state := mqttClient.messages[0]
	if state.topic != "baidu-face/groups/g1/state" || !state.retain {
		t.Errorf("state message = %+v, want retained state topic", state)
	}
	if state.payload != 2 {
		t.Errorf("state payload = %v, want person count 2", state.payload)
	}

	attrs := mqttClient.messages[1]
	if attrs.topic != "baidu-face/groups/g1/attributes" || !attrs.retain {
		t.Errorf("attributes message = %+v, want retained attributes topic", attrs)
	}
	groupState, ok := attrs.payload.(GroupState)
	if !ok {
		t.Fatalf("attributes payload is %T, want GroupState", attrs.payload)
	}
	if groupState.Count != 2 || len(groupState.Persons) != 2 {
		t.Errorf("group state = %+v", groupState)
	}
}

func TestRegisterGroupsDiscoveryConfig(t *testing.T) {
	mqttClient := &fakeMQTT{}
	dm := NewDiscoveryManager(mqttClient, testHAConfig())

	if err := dm.RegisterGroups([]string{"g1"}); err != nil {
		t.Fatalf("RegisterGroups failed: %v", err)
	}

	if len(mqttClient.messages) != 1 {
		t.Fatalf("published %d messages, want one discovery config", len(mqttClient.messages))
	}
	msg := mqttClient.messages[0]
	if msg.topic != "homeassistant/sensor/baidu_face/group_g1/config" {
		t.Errorf("discovery topic = %q", msg.topic)
	}
	if !msg.retain {
		t.Error("discovery config must be retained")
	}

	raw, err := json.Marshal(msg.payload)
	if err != nil {
		t.Fatalf("failed to marshal discovery payload: %v", err)
	}
	var sensorConfig SensorConfig
	if err := json.Unmarshal(raw, &sensorConfig); err != nil {
		t.Fatalf("failed to unmarshal discovery payload: %v", err)
	}
	if sensorConfig.StateTopic != "baidu-face/groups/g1/state" {
		t.Errorf("state topic = %q", sensorConfig.StateTopic)
	}
	if sensorConfig.JSONAttributesTopic != "baidu-face/groups/g1/attributes" {
		t.Errorf("attributes topic = %q", sensorConfig.JSONAttributesTopic)
	}
	if sensorConfig.AvailabilityTopic != "baidu-face/status" {
		t.Errorf("availability topic = %q", sensorConfig.AvailabilityTopic)
	}
}

func TestRegisterCamerasDiscoveryConfig(t *testing.T) {
	mqttClient := &fakeMQTT{}
	cfg := testHAConfig()
	cfg.Cameras = []config.CameraConfig{{Name: "Front Door", Group: "g1", Confidence: 80}}
	dm := NewDiscoveryManager(mqttClient, cfg)

	if err := dm.RegisterCameras(cfg.Cameras); err != nil {
		t.Fatalf("RegisterCameras failed: %v", err)
	}

	if len(mqttClient.messages) != 1 {
		t.Fatalf("published %d messages, want one discovery config", len(mqttClient.messages))
	}
	if got := mqttClient.messages[0].topic; got != "homeassistant/sensor/baidu_face/camera_front_door/config" {
		t.Errorf("discovery topic = %q", got)
	}
}
