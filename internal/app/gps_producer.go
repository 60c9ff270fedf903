package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/racehud/internal/config"
	"github.com/relabs-tech/racehud/internal/gps"
	"github.com/relabs-tech/racehud/internal/log"
)

// RunGPSProducer reads the GPS receiver on the configured serial port and
// publishes every fix as JSON to TOPIC_GPS, for HUDs running with
// SPEED_SOURCE=mqtt.
func RunGPSProducer() error {
	cfg := config.Get()
	logger := log.New("gps-producer")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDGPS)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := gps.NewSerialFeed(cfg.GPSSerialPort, cfg.GPSBaudRate)
	err := feed.Run(ctx, func(fix gps.Fix) {
		if err := publishFix(client, cfg.TopicGPS, fix); err != nil {
			logger.Warningf("publish error: %v", err)
			return
		}
		logger.Debugf("published GPS fix: %+v", fix)
	})
	if err != nil {
		return fmt.Errorf("gps feed: %w", err)
	}
	logger.Infof("shutting down")
	return nil
}

func publishFix(client mqtt.Client, topic string, fix gps.Fix) error {
	payload, err := gps.EncodeFix(fix)
	if err != nil {
		return fmt.Errorf("marshal fix: %w", err)
	}

	// retained so a HUD that starts later gets the last fix immediately
	token := client.Publish(topic, 0, true, payload)
	token.Wait()
	return token.Error()
}
