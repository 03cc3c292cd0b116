package mqtt

import (
	"fmt"
	"strconv"

	"face-attendance/internal/attendance"
	"face-attendance/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// Constants for Home Assistant MQTT Discovery
const (
	DiscoveryPrefix = "homeassistant"
	ComponentSensor = "sensor"
	NodeID          = "face_attendance"

	StatePresent = "present"
	StateAbsent  = "absent"
)

// SensorConfig is the MQTT discovery payload of one Home Assistant sensor.
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

// Device groups the sensors in Home Assistant.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// IdentityState is the retained state of one person's sensor.
type IdentityState struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Name      string `json:"name"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
}

// DiscoveryManager publishes Home Assistant discovery configs and keeps
// one presence sensor per enrolled person up to date. It is a session hook.
type DiscoveryManager struct {
	client *Client
	device *Device
}

// NewDiscoveryManager creates a manager publishing through client.
func NewDiscoveryManager(client *Client) *DiscoveryManager {
	return &DiscoveryManager{
		client: client,
		device: &Device{
			Identifiers:  []string{NodeID},
			Name:         "Face Attendance",
			Manufacturer: "face-attendance",
			Model:        "LBPH",
		},
	}
}

func (dm *DiscoveryManager) availabilityTopic() string {
	return dm.client.Topic("status")
}

func (dm *DiscoveryManager) identityTopic(id int) string {
	return dm.client.Topic("identity/" + strconv.Itoa(id))
}

func discoveryTopic(objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", DiscoveryPrefix, ComponentSensor, NodeID, objectID)
}

// RegisterIdentities publishes one sensor per identity plus the session
// count sensor, and marks everybody absent.
func (dm *DiscoveryManager) RegisterIdentities(identities []models.Identity) error {
	var failed int
	for _, identity := range identities {
		if err := dm.registerIdentitySensor(identity); err != nil {
			log.Errorf("Failed to register sensor for identity %s: %v", identity.Name, err)
			failed++
		}
	}
	if err := dm.registerCountSensor(); err != nil {
		log.Errorf("Failed to register present count sensor: %v", err)
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("%d discovery configs could not be published", failed)
	}
	return nil
}

func (dm *DiscoveryManager) registerIdentitySensor(identity models.Identity) error {
	objectID := "identity_" + strconv.Itoa(identity.ID)
	sensorConfig := SensorConfig{
		Name:                fmt.Sprintf("Attendance %s", identity.Name),
		UniqueID:            NodeID + "_" + objectID,
		StateTopic:          dm.identityTopic(identity.ID),
		JSONAttributesTopic: dm.identityTopic(identity.ID),
		ValueTemplate:       "{{ value_json.state }}",
		Icon:                "mdi:account-check",
		AvailabilityTopic:   dm.availabilityTopic(),
		PayloadAvailable:    "online",
		PayloadNotAvailable: "offline",
		Device:              dm.device,
	}

	log.Debugf("Registering Home Assistant sensor for identity: %s", identity.Name)
	if err := dm.client.PublishRetain(discoveryTopic(objectID), sensorConfig); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return dm.client.PublishRetain(dm.identityTopic(identity.ID), IdentityState{State: StateAbsent, Name: identity.Name})
}

func (dm *DiscoveryManager) registerCountSensor() error {
	sensorConfig := SensorConfig{
		Name:                "Attendance Present",
		UniqueID:            NodeID + "_present",
		StateTopic:          dm.client.Topic("session"),
		JSONAttributesTopic: dm.client.Topic("session"),
		ValueTemplate:       "{{ value_json.present }}",
		Icon:                "mdi:account-group",
		AvailabilityTopic:   dm.availabilityTopic(),
		PayloadAvailable:    "online",
		PayloadNotAvailable: "offline",
		Device:              dm.device,
	}
	if err := dm.client.PublishRetain(discoveryTopic("present"), sensorConfig); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return nil
}

// PublishAvailability publishes the online state of the attendance loop.
func (dm *DiscoveryManager) PublishAvailability(online bool) error {
	status := "offline"
	if online {
		status = "online"
	}
	return dm.client.PublishRetain(dm.availabilityTopic(), status)
}

// RecordAdded flips the person's sensor to present.
func (dm *DiscoveryManager) RecordAdded(sessionID string, rec models.AttendanceRecord) {
	state := IdentityState{State: StatePresent, SessionID: sessionID, Name: rec.Name, Date: rec.Date, Time: rec.Time}
	if err := dm.client.PublishRetain(dm.identityTopic(rec.ID), state); err != nil {
		log.WithError(err).Warnf("Failed to update sensor of identity %d", rec.ID)
	}
}

// SessionFinalized marks the loop offline.
func (dm *DiscoveryManager) SessionFinalized(attendance.Summary) {
	if err := dm.PublishAvailability(false); err != nil {
		log.WithError(err).Warn("Failed to publish availability")
	}
}
