package sensor

import (
	"context"
	"fmt"
	"log"
	"time"

	"field-controller/internal/model"
	"field-controller/pkg/clock"
)

// degradedAfter is how many per-cycle sensor errors a reading tolerates
// before it is marked degraded.
const degradedAfter = 2

// Aggregator polls every registered source once per cycle and folds the
// results into a single Reading. A failing source is tagged on the reading;
// it never aborts the poll.
type Aggregator struct {
	sources []Source
	timeout time.Duration
	clk     clock.Clock
}

func NewAggregator(sources []Source, timeout time.Duration, clk clock.Clock) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Aggregator{sources: sources, timeout: timeout, clk: clk}
}

// Poll reads the sources in registration order, each under the configured
// timeout, and returns the cycle's snapshot.
func (a *Aggregator) Poll(ctx context.Context) model.Reading {
	r := model.Reading{Timestamp: a.clk.Now().UTC()}
	for _, src := range a.sources {
		v, err := a.readOne(ctx, src)
		if err != nil {
			r.Errors = append(r.Errors, model.SensorError{Sensor: src.Name(), Reason: err.Error()})
			log.Printf("aggregator: %s read failed: %v", src.Name(), err)
			continue
		}
		switch src.Kind() {
		case model.KindTemperature:
			r.Temperature = &v
		case model.KindHumidity:
			r.Humidity = &v
		case model.KindSoil:
			r.SoilMoisture = &v
		case model.KindLight:
			r.Light = &v
		case model.KindCPUTemp:
			r.CPUTemp = &v
		case model.KindRain:
			r.RainDetected = v >= 0.5
		}
	}
	if len(r.Errors) > degradedAfter {
		r.Degraded = true
	}
	return r
}

// readOne enforces the timeout even against a source that ignores its
// context; the read goroutine sends into a buffered channel so an eventual
// late result is dropped, not leaked.
func (a *Aggregator) readOne(ctx context.Context, src Source) (float64, error) {
	rctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		v   float64
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := src.Read(rctx)
		ch <- result{v, err}
	}()
	select {
	case res := <-ch:
		return res.v, res.err
	case <-rctx.Done():
		return 0, fmt.Errorf("read timed out after %s", a.timeout)
	}
}
