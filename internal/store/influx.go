package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"field-controller/internal/config"
	"field-controller/internal/model"
)

// InfluxRecorder mirrors each reading into an InfluxDB bucket as one
// "field_reading" point.
type InfluxRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	fieldID  string
}

func NewInfluxRecorder(ctx context.Context, cfg config.Influx, fieldID string) (*InfluxRecorder, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second
	err := backoff.Retry(func() error {
		ok, err := client.Ping(ctx)
		if err != nil {
			log.Printf("influx: ping %s failed: %v", cfg.URL, err)
			return err
		}
		if !ok {
			log.Printf("influx: %s not ready", cfg.URL)
			return fmt.Errorf("influx not ready")
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx unreachable at %s: %w", cfg.URL, err)
	}

	return &InfluxRecorder{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		fieldID:  fieldID,
	}, nil
}

func (r *InfluxRecorder) Append(ctx context.Context, reading model.Reading) error {
	tags := map[string]string{"field_id": r.fieldID}
	fields := map[string]interface{}{
		"rain":     reading.RainDetected,
		"errors":   reading.ErrorCount(),
		"degraded": reading.Degraded,
	}
	if reading.Temperature != nil {
		fields["temperature"] = *reading.Temperature
	}
	if reading.Humidity != nil {
		fields["humidity"] = *reading.Humidity
	}
	if reading.SoilMoisture != nil {
		fields["soil_moisture"] = *reading.SoilMoisture
	}
	if reading.Light != nil {
		fields["light"] = *reading.Light
	}
	if reading.CPUTemp != nil {
		fields["cpu_temp"] = *reading.CPUTemp
	}

	point := influxdb2.NewPoint("field_reading", tags, fields, reading.Timestamp)
	if err := r.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (r *InfluxRecorder) Close() {
	r.client.Close()
}
