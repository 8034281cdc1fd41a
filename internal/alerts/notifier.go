package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/models"
)

// Notifier publishes freshly created alerts to an MQTT topic so dashboards
// and driver apps get them without polling. Publishing is best-effort: a
// broker outage never fails the document write that produced the alert.
type Notifier struct {
	client  mqtt.Client
	timeout time.Duration
}

// NewNotifier connects to the broker. brokerURL is e.g. "tcp://mqtt:1883".
func NewNotifier(brokerURL, clientID string) (*Notifier, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectRetry(true).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", brokerURL, err)
	}
	return &Notifier{client: client, timeout: 5 * time.Second}, nil
}

// PublishCreated publishes each alert to fleet/alerts/<vehicle-id>.
func (n *Notifier) PublishCreated(created []models.Alert) {
	if n == nil {
		return
	}
	for _, a := range created {
		payload, err := json.Marshal(a)
		if err != nil {
			log.WithError(err).Warn("failed to encode alert for publish")
			continue
		}
		topic := "fleet/alerts/" + a.VehicleID.Hex()
		token := n.client.Publish(topic, 1, false, payload)
		if !token.WaitTimeout(n.timeout) || token.Error() != nil {
			log.WithField("topic", topic).Warn("failed to publish alert")
		}
	}
}

// Close disconnects from the broker.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.client.Disconnect(250)
}
