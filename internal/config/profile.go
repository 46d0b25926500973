package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the optional per-field YAML file. Only set fields override the
// environment; durations are written as Go duration strings ("300s", "5m").
type Profile struct {
	Field struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"field"`
	Thresholds struct {
		SoilMin     *float64 `yaml:"soil_min"`
		TempMin     *float64 `yaml:"temp_min"`
		TempMax     *float64 `yaml:"temp_max"`
		HumidityMin *float64 `yaml:"humidity_min"`
		HumidityMax *float64 `yaml:"humidity_max"`
	} `yaml:"thresholds"`
	Irrigation struct {
		Auto     *bool  `yaml:"auto"`
		Duration string `yaml:"duration"`
		Min      string `yaml:"min"`
		Max      string `yaml:"max"`
		Cooldown string `yaml:"cooldown"`
	} `yaml:"irrigation"`
	Pins struct {
		Relay        string `yaml:"relay"`
		Rain         string `yaml:"rain"`
		SoilChannel  *int   `yaml:"soil_channel"`
		LightChannel *int   `yaml:"light_channel"`
	} `yaml:"pins"`
}

func (c *Config) applyProfile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	if p.Field.ID != "" {
		c.FieldID = p.Field.ID
	}
	if p.Field.Name != "" {
		c.FieldName = p.Field.Name
	}
	setFloat(&c.Thresholds.SoilMin, p.Thresholds.SoilMin)
	setFloat(&c.Thresholds.TempMin, p.Thresholds.TempMin)
	setFloat(&c.Thresholds.TempMax, p.Thresholds.TempMax)
	setFloat(&c.Thresholds.HumidityMin, p.Thresholds.HumidityMin)
	setFloat(&c.Thresholds.HumidityMax, p.Thresholds.HumidityMax)
	if p.Irrigation.Auto != nil {
		c.AutoIrrigation = *p.Irrigation.Auto
	}
	if err := setDuration(&c.IrrigationDuration, p.Irrigation.Duration); err != nil {
		return fmt.Errorf("irrigation.duration: %w", err)
	}
	if err := setDuration(&c.IrrigationMin, p.Irrigation.Min); err != nil {
		return fmt.Errorf("irrigation.min: %w", err)
	}
	if err := setDuration(&c.IrrigationMax, p.Irrigation.Max); err != nil {
		return fmt.Errorf("irrigation.max: %w", err)
	}
	if err := setDuration(&c.IrrigationCooldown, p.Irrigation.Cooldown); err != nil {
		return fmt.Errorf("irrigation.cooldown: %w", err)
	}
	if p.Pins.Relay != "" {
		c.Pins.Relay = p.Pins.Relay
	}
	if p.Pins.Rain != "" {
		c.Pins.Rain = p.Pins.Rain
	}
	if p.Pins.SoilChannel != nil {
		c.Pins.SoilChannel = *p.Pins.SoilChannel
	}
	if p.Pins.LightChannel != nil {
		c.Pins.LightChannel = *p.Pins.LightChannel
	}
	return nil
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src string) error {
	if src == "" {
		return nil
	}
	d, err := time.ParseDuration(src)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
