// Package mqtt publishes attendance events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"face-attendance/config"
	"face-attendance/internal/attendance"
	"face-attendance/internal/core/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

var ( // Use vars for functions to allow mocking in tests
	NewClientFunc = mqtt.NewClient
)

const publishTimeout = 5 * time.Second

// PresentEvent is published on {prefix}/present for every new record.
type PresentEvent struct {
	SessionID string `json:"session_id"`
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

// SessionEvent is published on {prefix}/session when a session ends.
type SessionEvent struct {
	SessionID   string         `json:"session_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinalizedAt time.Time      `json:"finalized_at"`
	StopReason  string         `json:"stop_reason"`
	Frames      int            `json:"frames"`
	Present     int            `json:"present"`
	LedgerPath  string         `json:"ledger_path,omitempty"`
	Attendees   []PresentEvent `json:"attendees"`
}

// Client wraps the MQTT client and its configuration.
type Client struct {
	Cfg    config.MQTTConfig
	Client mqtt.Client

	connected atomic.Bool // written by paho handler goroutines
}

// NewMQTTClient creates and configures a new publisher. It returns nil when
// MQTT is disabled.
func NewMQTTClient(cfg config.MQTTConfig) (*Client, error) {
	if !cfg.Enabled {
		log.Info("MQTT client is disabled in the configuration.")
		return nil, nil // Not an error, just not enabled
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker must be set when mqtt is enabled")
	}

	c := &Client{Cfg: cfg}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.brokerURL())
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetConnectionLostHandler(c.connectionLostHandler)
	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	c.Client = NewClientFunc(opts)
	return c, nil
}

func (c *Client) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Cfg.Broker, c.Cfg.Port)
}

// Start connects to the broker.
func (c *Client) Start() error {
	if c.Client == nil {
		return fmt.Errorf("MQTT client not initialized (likely disabled)")
	}
	log.Infof("Attempting to connect to MQTT broker: %s", c.brokerURL())
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", c.brokerURL(), token.Error())
	}
	return nil
}

// Stop disconnects the MQTT client.
func (c *Client) Stop() {
	if c.Client != nil && c.Client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		c.Client.Disconnect(250)
	}
	c.connected.Store(false)
}

// Connected reports the connection state seen by the handlers.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) connectionLostHandler(_ mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v. Attempting to reconnect...", err)
	c.connected.Store(false)
}

func (c *Client) onConnectHandler(_ mqtt.Client) {
	log.Infof("Successfully connected to MQTT broker: %s", c.brokerURL())
	c.connected.Store(true)
}

// Topic joins the configured prefix and name.
func (c *Client) Topic(name string) string {
	prefix := strings.TrimSuffix(c.Cfg.TopicPrefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// RecordAdded publishes a present event.
func (c *Client) RecordAdded(sessionID string, rec models.AttendanceRecord) {
	if err := c.Publish(c.Topic("present"), presentEvent(sessionID, rec)); err != nil {
		log.WithError(err).Warn("Failed to publish present event")
	}
}

// SessionFinalized publishes the session summary.
func (c *Client) SessionFinalized(s attendance.Summary) {
	ev := SessionEvent{
		SessionID:   s.SessionID,
		StartedAt:   s.StartedAt,
		FinalizedAt: s.FinalizedAt,
		StopReason:  string(s.StopReason),
		Frames:      s.Frames,
		Present:     len(s.Records),
		LedgerPath:  s.LedgerPath,
		Attendees:   make([]PresentEvent, 0, len(s.Records)),
	}
	for _, r := range s.Records {
		ev.Attendees = append(ev.Attendees, presentEvent(s.SessionID, r))
	}
	if err := c.PublishRetain(c.Topic("session"), ev); err != nil {
		log.WithError(err).Warn("Failed to publish session summary")
	}
}

func presentEvent(sessionID string, r models.AttendanceRecord) PresentEvent {
	return PresentEvent{SessionID: sessionID, ID: r.ID, Name: r.Name, Date: r.Date, Time: r.Time}
}

// PublishMessage sends payload with QoS 1. Strings and bytes are sent as
// is, anything else as JSON.
func (c *Client) PublishMessage(topic string, payload interface{}, retain bool) error {
	if c.Client == nil {
		return fmt.Errorf("MQTT client not initialized")
	}

	var payloadBytes []byte
	var err error

	switch p := payload.(type) {
	case string:
		payloadBytes = []byte(p)
	case []byte:
		payloadBytes = p
	default:
		payloadBytes, err = json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
	}

	token := c.Client.Publish(topic, 1, retain, payloadBytes)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}

	log.Debugf("Published message to topic: %s", topic)
	return nil
}

// PublishRetain publishes with the retain flag set.
func (c *Client) PublishRetain(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, true)
}

// Publish publishes without the retain flag.
func (c *Client) Publish(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, false)
}
