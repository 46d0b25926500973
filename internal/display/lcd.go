package display

import (
	"fmt"

	"gobot.io/x/gobot/v2/drivers/i2c"
)

// lcdWidth is the character width of the 16x2 panel.
const lcdWidth = 16

// LCD drives the Grove RGB LCD over I2C.
type LCD struct {
	driver *i2c.GroveLcdDriver
}

func NewLCD(conn i2c.Connector) (*LCD, error) {
	d := i2c.NewGroveLcdDriver(conn)
	if err := d.Start(); err != nil {
		return nil, fmt.Errorf("lcd start: %w", err)
	}
	return &LCD{driver: d}, nil
}

func (l *LCD) Show(line1, line2 string) error {
	if err := l.driver.Clear(); err != nil {
		return fmt.Errorf("lcd clear: %w", err)
	}
	if err := l.driver.Write(clip(line1) + "\n" + clip(line2)); err != nil {
		return fmt.Errorf("lcd write: %w", err)
	}
	return nil
}

func (l *LCD) Close() error {
	if err := l.driver.Clear(); err != nil {
		return err
	}
	return l.driver.Halt()
}

func clip(s string) string {
	if len(s) > lcdWidth {
		return s[:lcdWidth]
	}
	return s
}
