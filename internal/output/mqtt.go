package output

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/andreas-glaser/ha-dessmonitor/internal/config"
	"github.com/andreas-glaser/ha-dessmonitor/internal/devcode"
	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
	"github.com/andreas-glaser/ha-dessmonitor/internal/utils"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	// stateCacheTTL bounds change suppression so a restarty broker still
	// gets a full state at least once an hour.
	stateCacheTTL = time.Hour
)

// Publisher pushes per-device state to an MQTT broker: one retained JSON
// payload per SN under <prefix>/<sn>/state, with an availability topic the
// broker flips via the will on disconnect.
type Publisher struct {
	client mqtt.Client
	prefix string
	cache  *utils.ValueCache
}

// statePayload is the published document for one device.
type statePayload struct {
	Device    model.Device      `json:"device"`
	Collector model.Collector   `json:"collector"`
	Model     string            `json:"model"`
	Points    []model.DataPoint `json:"points"`
	UpdatedAt string            `json:"updated_at"`
}

// NewPublisher connects to the broker and announces availability.
func NewPublisher(cfg config.MQTTConfig) (*Publisher, error) {
	availability := cfg.TopicPrefix + "/availability"

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetKeepAlive(60 * time.Second).
		SetWill(availability, "offline", 1, true).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Printf("mqtt: connected to %s", cfg.Broker)
			c.Publish(availability, 1, true, "online")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &Publisher{
		client: client,
		prefix: cfg.TopicPrefix,
		cache:  utils.NewValueCache(stateCacheTTL),
	}, nil
}

// PublishSnapshots publishes one state document per device, skipping
// payloads unchanged since the last publish.
func (p *Publisher) PublishSnapshots(snaps map[string]*model.DeviceSnapshot) error {
	now := time.Now().UTC().Format(time.RFC3339)
	var firstErr error
	for sn, snap := range snaps {
		points := make([]model.DataPoint, 0, len(snap.Data))
		for _, point := range snap.Data {
			if devcode.IsSupported(snap.Device.Devcode) {
				point = devcode.ApplyTransformations(snap.Device.Devcode, point)
			}
			points = append(points, point)
		}

		body, err := json.Marshal(statePayload{
			Device:    snap.Device,
			Collector: snap.Collector,
			Model:     devcode.ModelName(snap.Device.Devcode),
			Points:    points,
			UpdatedAt: now,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		// UpdatedAt is excluded from the change check so identical data
		// does not republish every cycle.
		key := sn
		fingerprint := fingerprintPoints(points)
		if old, ok := p.cache.GetValue(key); ok && old == fingerprint {
			continue
		}

		topic := p.prefix + "/" + sn + "/state"
		token := p.client.Publish(topic, 1, true, body)
		if !token.WaitTimeout(mqttPublishTimeout) {
			if firstErr == nil {
				firstErr = fmt.Errorf("publish %s timed out", topic)
			}
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: publish %s: %v", topic, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		p.cache.SetValue(key, fingerprint)
	}
	return firstErr
}

func fingerprintPoints(points []model.DataPoint) string {
	b, err := json.Marshal(points)
	if err != nil {
		return ""
	}
	return string(b)
}

// Close marks the service offline and disconnects.
func (p *Publisher) Close() {
	token := p.client.Publish(p.prefix+"/availability", 1, true, "offline")
	token.WaitTimeout(mqttPublishTimeout)
	p.client.Disconnect(250)
}
