package homeassistant

import (
	"encoding/json"
	"fmt"
)

// Component names the hub integration type an entity is created under.
const (
	ComponentSensor       = "sensor"
	ComponentBinarySensor = "binary_sensor"
)

// Availability payloads shared by the will, the availability topic and every
// discovery config.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Entity describes one entity the hub should create for this host.
type Entity struct {
	// ID is the per-host unique topic segment, e.g. "cpu_usage".
	ID string
	// Component is ComponentSensor or ComponentBinarySensor.
	Component string
	// DeviceClass is an optional Home Assistant device class, e.g. "battery".
	DeviceClass string
	// Unit is an optional unit of measurement.
	Unit string
	// Icon is an optional mdi icon name.
	Icon string
}

// Discovery builds the topics and payloads of the Home Assistant MQTT
// discovery convention for one host. All topics hang off two roots: the
// hub's discovery prefix for config documents and the daemon's own topic
// prefix for state.
type Discovery struct {
	// Hostname identifies this host in every topic.
	Hostname string
	// DiscoveryPrefix is the topic root the hub subscribes to for
	// discovery, normally "homeassistant".
	DiscoveryPrefix string
	// TopicPrefix is the root of the daemon's own topics.
	TopicPrefix string
	// Version is advertised as the device software version.
	Version string
}

// configPayload is the discovery document the hub parses.
type configPayload struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	StateTopic          string `json:"state_topic"`
	AvailabilityTopic   string `json:"availability_topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
	DeviceClass         string `json:"device_class,omitempty"`
	UnitOfMeasurement   string `json:"unit_of_measurement,omitempty"`
	Icon                string `json:"icon,omitempty"`
	Device              device `json:"device"`
}

// device groups every entity of this host under one hub device entry.
type device struct {
	Identifiers []string `json:"identifiers"`
	Name        string   `json:"name"`
	Model       string   `json:"model"`
	SWVersion   string   `json:"sw_version,omitempty"`
}

// node is the host-scoped segment of discovery topics and unique ids.
func (d *Discovery) node() string {
	return fmt.Sprintf("%s-%s", d.TopicPrefix, d.Hostname)
}

// ConfigTopic returns the discovery config topic for an entity.
func (d *Discovery) ConfigTopic(e Entity) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", d.DiscoveryPrefix, e.Component, d.node(), e.ID)
}

// StateTopic returns the topic an entity's values are published on.
func (d *Discovery) StateTopic(id string) string {
	return fmt.Sprintf("%s/%s/%s", d.TopicPrefix, d.Hostname, id)
}

// AvailabilityTopic returns the shared availability topic for this host.
func (d *Discovery) AvailabilityTopic() string {
	return fmt.Sprintf("%s/%s/availability", d.TopicPrefix, d.Hostname)
}

// StatusTopic returns the topic the hub announces its own birth on.
func (d *Discovery) StatusTopic() string {
	return d.DiscoveryPrefix + "/status"
}

// ConfigPayload renders the discovery document for an entity.
func (d *Discovery) ConfigPayload(e Entity) ([]byte, error) {
	p := configPayload{
		Name:                fmt.Sprintf("%s-%s", d.Hostname, e.ID),
		UniqueID:            fmt.Sprintf("%s-%s", d.node(), e.ID),
		StateTopic:          d.StateTopic(e.ID),
		AvailabilityTopic:   d.AvailabilityTopic(),
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		DeviceClass:         e.DeviceClass,
		UnitOfMeasurement:   e.Unit,
		Icon:                e.Icon,
		Device: device{
			Identifiers: []string{d.node()},
			Name:        d.Hostname,
			Model:       "system-mqtt",
			SWVersion:   d.Version,
		},
	}
	return json.Marshal(p)
}
