// Package hardware binds the field rig: SHT2x temperature/humidity on I2C,
// an MCP3008 ADC on SPI for the soil and light probes, a rain sensor on a
// digital pin and the irrigation valve relay. Everything hangs off one raspi
// adaptor so a restart sequence can bounce the whole rig at once.
package hardware

import (
	"context"
	"fmt"
	"log"
	"sync"

	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/drivers/spi"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"field-controller/internal/config"
)

type Rig struct {
	mu      sync.Mutex
	adaptor *raspi.Adaptor
	sht     *i2c.SHT2xDriver
	adc     *spi.MCP3008Driver
	relay   *gpio.RelayDriver
	pins    config.Pins
}

// NewRig connects the adaptor and starts every driver. A rig that fails to
// start is returned closed.
func NewRig(pins config.Pins) (*Rig, error) {
	rig := &Rig{pins: pins}
	if err := rig.bringUpLocked(); err != nil {
		return nil, err
	}
	return rig, nil
}

func (r *Rig) bringUpLocked() error {
	r.adaptor = raspi.NewAdaptor()
	if err := r.adaptor.Connect(); err != nil {
		return fmt.Errorf("raspi adaptor: %w", err)
	}
	r.sht = i2c.NewSHT2xDriver(r.adaptor)
	r.adc = spi.NewMCP3008Driver(r.adaptor)
	r.relay = gpio.NewRelayDriver(r.adaptor, r.pins.Relay)

	if err := r.sht.Start(); err != nil {
		return fmt.Errorf("sht2x driver: %w", err)
	}
	if err := r.adc.Start(); err != nil {
		return fmt.Errorf("mcp3008 driver: %w", err)
	}
	if err := r.relay.Start(); err != nil {
		return fmt.Errorf("relay driver: %w", err)
	}
	return nil
}

func (r *Rig) tearDownLocked() {
	if r.relay != nil {
		if err := r.relay.Off(); err != nil {
			log.Printf("hardware: valve off during teardown: %v", err)
		}
		if err := r.relay.Halt(); err != nil {
			log.Printf("hardware: halt relay: %v", err)
		}
	}
	if r.adc != nil {
		if err := r.adc.Halt(); err != nil {
			log.Printf("hardware: halt adc: %v", err)
		}
	}
	if r.sht != nil {
		if err := r.sht.Halt(); err != nil {
			log.Printf("hardware: halt sht2x: %v", err)
		}
	}
	if r.adaptor != nil {
		if err := r.adaptor.Finalize(); err != nil {
			log.Printf("hardware: finalize adaptor: %v", err)
		}
	}
}

// Reset releases and reacquires the whole rig. Used by the supervisor's
// restart sequence when the error budget is exhausted.
func (r *Rig) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.Print("hardware: resetting rig")
	r.tearDownLocked()
	return r.bringUpLocked()
}

// Adaptor exposes the bus connection for peripherals owned elsewhere, such
// as the LCD.
func (r *Rig) Adaptor() *raspi.Adaptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adaptor
}

func (r *Rig) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tearDownLocked()
}
