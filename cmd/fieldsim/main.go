package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"field-controller/internal/model"
	"field-controller/internal/sim"
	"field-controller/pkg/mqttx"
)

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	clientID := flag.String("client-id", "fieldsim", "MQTT client ID")
	username := flag.String("username", "", "MQTT username")
	password := flag.String("password", "", "MQTT password")
	fieldID := flag.String("field-id", "field-1", "field identifier")
	prefix := flag.String("prefix", "field", "topic prefix")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random walk seed")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mqttx.Connect(ctx, mqttx.Config{
		Broker:   *broker,
		ClientID: *clientID,
		Username: *username,
		Password: *password,
	})
	if err != nil {
		log.Fatalf("fieldsim: %v", err)
	}
	pub := mqttx.NewPublisher(client, 0, 5*time.Second)

	sources := sim.DefaultSources(*seed)
	log.Printf("fieldsim: publishing %d sources for %s every %s", len(sources), *fieldID, *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		for _, src := range sources {
			v, err := src.Read(ctx)
			if err != nil {
				log.Printf("fieldsim: %s: %v", src.Name(), err)
				continue
			}
			sample := model.SensorSample{
				FieldID:   *fieldID,
				Sensor:    src.Name(),
				Kind:      src.Kind(),
				Value:     v,
				Timestamp: time.Now().UTC(),
			}
			topic := *prefix + "/" + *fieldID + "/sensors/" + string(src.Kind())
			if err := pub.PublishJSON(topic, sample); err != nil {
				log.Printf("fieldsim: publish %s: %v", topic, err)
			}
		}
		select {
		case <-ctx.Done():
			log.Print("fieldsim: stopped")
			return
		case <-ticker.C:
		}
	}
}
