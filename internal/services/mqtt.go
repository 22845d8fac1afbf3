package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/config"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

const mqttConnectTimeout = 10 * time.Second

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher delivers notifications to in-vehicle units. Topics are
// "<prefix>/admins" and "<prefix>/drivers/<id>", QoS 1, not retained.
type MQTTPublisher struct {
	client mqttPublisher
	prefix string
	log    *logger.Logger
}

// ConnectMQTT connects to cfg.Broker with auto-reconnect enabled.
func ConnectMQTT(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(mqttConnectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return client, nil
}

func NewMQTTPublisher(client mqttPublisher, prefix string, log *logger.Logger) *MQTTPublisher {
	if prefix == "" {
		prefix = "mooveit"
	}
	return &MQTTPublisher{client: client, prefix: prefix, log: log.WithField("component", "mqtt")}
}

func (p *MQTTPublisher) NotifyAdmins(_ context.Context, n notify.Notification) {
	p.publish(p.prefix+"/admins", n)
}

func (p *MQTTPublisher) NotifyDriver(_ context.Context, driverID uuid.UUID, n notify.Notification) {
	p.publish(fmt.Sprintf("%s/drivers/%s", p.prefix, driverID), n)
}

func (p *MQTTPublisher) publish(topic string, n notify.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		p.log.WithError(err).Warn("failed to marshal notification")
		return
	}

	token := p.client.Publish(topic, 1, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			p.log.WithField("topic", topic).Warn("mqtt publish timed out")
			return
		}
		if err := token.Error(); err != nil {
			p.log.WithError(err).WithField("topic", topic).Warn("failed to publish notification")
		}
	}()
}
