package gps

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/racehud/internal/log"
)

// MQTTFeed subscribes to a topic carrying Fix JSON, as published by
// cmd/gps_producer.
type MQTTFeed struct {
	Broker   string
	ClientID string
	Topic    string

	// newClient is replaced in tests.
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewMQTTFeed returns a feed for topic on broker.
func NewMQTTFeed(broker, clientID, topic string) *MQTTFeed {
	return &MQTTFeed{Broker: broker, ClientID: clientID, Topic: topic, newClient: mqtt.NewClient}
}

// Run connects, subscribes and emits every decoded fix until ctx is canceled.
func (f *MQTTFeed) Run(ctx context.Context, emit func(Fix)) error {
	logger := log.New("gps-mqtt")

	opts := mqtt.NewClientOptions().
		AddBroker(f.Broker).
		SetClientID(f.ClientID)

	client := f.newClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect %s: %w", f.Broker, token.Error())
	}
	defer client.Disconnect(250)
	logger.Infof("connected to MQTT broker at %s", f.Broker)

	token := client.Subscribe(f.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fix, err := DecodeFix(msg.Payload())
		if err != nil {
			logger.Warningf("%s unmarshal error: %v", f.Topic, err)
			return
		}
		emit(fix)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", f.Topic, token.Error())
	}
	logger.Infof("subscribed to %s", f.Topic)

	<-ctx.Done()

	if token := client.Unsubscribe(f.Topic); token.Wait() && token.Error() != nil {
		logger.Warningf("unsubscribe %s: %v", f.Topic, token.Error())
	}
	return nil
}

// DecodeFix parses a Fix JSON payload.
func DecodeFix(payload []byte) (Fix, error) {
	var fix Fix
	if err := json.Unmarshal(payload, &fix); err != nil {
		return Fix{}, err
	}
	return fix, nil
}

// EncodeFix renders fix as the JSON payload published on the GPS topic.
func EncodeFix(fix Fix) ([]byte, error) {
	return json.Marshal(fix)
}
