package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable of the controller. Values come from the
// environment (with a .env overlay) and an optional YAML field profile.
type Config struct {
	FieldID   string
	FieldName string
	Mode      string // sim, gpio or mqtt sensor wiring

	CycleInterval  time.Duration
	SensorTimeout  time.Duration
	HealthInterval time.Duration
	ErrorBudget    int
	MaxRestarts    int
	AutoRestart    bool

	AutoIrrigation     bool
	IrrigationDuration time.Duration
	IrrigationMin      time.Duration
	IrrigationMax      time.Duration
	IrrigationCooldown time.Duration

	AlertCooldown  time.Duration
	ThreatCooldown time.Duration
	ThreatClasses  []string

	Thresholds Thresholds
	MQTT       MQTT
	Influx     Influx
	Pins       Pins

	DataDir       string
	ReportDir     string
	RetentionDays int
	ReportTime    string
	ReportEnabled bool

	AdminAddr  string
	Display    string // log or lcd
	StaleAfter time.Duration
}

type Thresholds struct {
	SoilMin     float64
	TempMin     float64
	TempMax     float64
	HumidityMin float64
	HumidityMax float64
	CPUWarn     float64
	CPUCrit     float64
	MemWarn     float64
	MemCrit     float64
	DiskWarn    float64
	DiskCrit    float64
}

type MQTT struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

type Influx struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type Pins struct {
	Relay        string
	Rain         string
	SoilChannel  int
	LightChannel int
}

// Load reads the environment (after a best-effort .env overlay), applies the
// YAML profile named by PROFILE if any, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		FieldID:   getEnv("FIELD_ID", "field-1"),
		FieldName: getEnv("FIELD_NAME", "North Field"),
		Mode:      getEnv("MODE", "sim"),

		CycleInterval:  getEnvDuration("CYCLE_INTERVAL", 30*time.Second),
		SensorTimeout:  getEnvDuration("SENSOR_TIMEOUT", 5*time.Second),
		HealthInterval: getEnvDuration("HEALTH_INTERVAL", 600*time.Second),
		ErrorBudget:    getEnvInt("ERROR_BUDGET", 10),
		MaxRestarts:    getEnvInt("MAX_RESTARTS", 3),
		AutoRestart:    getEnvBool("AUTO_RESTART", true),

		AutoIrrigation:     getEnvBool("AUTO_IRRIGATION", true),
		IrrigationDuration: getEnvDuration("IRRIGATION_DURATION", 300*time.Second),
		IrrigationMin:      getEnvDuration("IRRIGATION_MIN", 300*time.Second),
		IrrigationMax:      getEnvDuration("IRRIGATION_MAX", 1800*time.Second),
		IrrigationCooldown: getEnvDuration("IRRIGATION_COOLDOWN", 300*time.Second),

		AlertCooldown:  getEnvDuration("ALERT_COOLDOWN", 300*time.Second),
		ThreatCooldown: getEnvDuration("THREAT_COOLDOWN", 600*time.Second),
		ThreatClasses:  getEnvList("THREAT_CLASSES", []string{"person", "dog", "cat", "bird"}),

		Thresholds: Thresholds{
			SoilMin:     getEnvFloat("SOIL_MIN", 30),
			TempMin:     getEnvFloat("TEMP_MIN", 10),
			TempMax:     getEnvFloat("TEMP_MAX", 35),
			HumidityMin: getEnvFloat("HUMIDITY_MIN", 40),
			HumidityMax: getEnvFloat("HUMIDITY_MAX", 80),
			CPUWarn:     getEnvFloat("CPU_WARN", 70),
			CPUCrit:     getEnvFloat("CPU_CRIT", 80),
			MemWarn:     getEnvFloat("MEM_WARN", 80),
			MemCrit:     getEnvFloat("MEM_CRIT", 90),
			DiskWarn:    getEnvFloat("DISK_WARN", 80),
			DiskCrit:    getEnvFloat("DISK_CRIT", 90),
		},

		MQTT: MQTT{
			Broker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"),
			ClientID:    getEnv("MQTT_CLIENT_ID", ""),
			Username:    getEnv("MQTT_USERNAME", ""),
			Password:    getEnv("MQTT_PASSWORD", ""),
			TopicPrefix: getEnv("TOPIC_PREFIX", "field"),
		},

		Influx: Influx{
			URL:    getEnv("INFLUX_URL", ""),
			Token:  getEnv("INFLUX_TOKEN", ""),
			Org:    getEnv("INFLUX_ORG", "farm"),
			Bucket: getEnv("INFLUX_BUCKET", "readings"),
		},

		Pins: Pins{
			Relay:        getEnv("RELAY_PIN", "27"),
			Rain:         getEnv("RAIN_PIN", "17"),
			SoilChannel:  getEnvInt("SOIL_CHANNEL", 0),
			LightChannel: getEnvInt("LIGHT_CHANNEL", 2),
		},

		DataDir:       getEnv("DATA_DIR", "data"),
		ReportDir:     getEnv("REPORT_DIR", "reports"),
		RetentionDays: getEnvInt("RETENTION_DAYS", 30),
		ReportTime:    getEnv("REPORT_TIME", "08:00"),
		ReportEnabled: getEnvBool("REPORT_ENABLED", true),

		AdminAddr:  getEnv("ADMIN_ADDR", ":8080"),
		Display:    getEnv("DISPLAY_KIND", "log"),
		StaleAfter: getEnvDuration("STALE_AFTER", 90*time.Second),
	}

	if path := os.Getenv("PROFILE"); path != "" {
		if err := cfg.applyProfile(path); err != nil {
			return nil, fmt.Errorf("profile %s: %w", path, err)
		}
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "fieldd-" + cfg.FieldID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the control loop cannot run with.
func (c *Config) Validate() error {
	if c.CycleInterval <= 0 {
		return fmt.Errorf("cycle interval must be positive, got %s", c.CycleInterval)
	}
	if c.SensorTimeout <= 0 {
		return fmt.Errorf("sensor timeout must be positive, got %s", c.SensorTimeout)
	}
	if c.IrrigationMin <= 0 || c.IrrigationMax < c.IrrigationMin {
		return fmt.Errorf("irrigation bounds invalid: min=%s max=%s", c.IrrigationMin, c.IrrigationMax)
	}
	if c.IrrigationDuration < c.IrrigationMin || c.IrrigationDuration > c.IrrigationMax {
		return fmt.Errorf("irrigation duration %s outside [%s, %s]", c.IrrigationDuration, c.IrrigationMin, c.IrrigationMax)
	}
	if c.MaxRestarts < 0 || c.ErrorBudget < 1 {
		return fmt.Errorf("restart policy invalid: budget=%d max=%d", c.ErrorBudget, c.MaxRestarts)
	}
	if c.Thresholds.TempMin >= c.Thresholds.TempMax {
		return fmt.Errorf("temperature bounds invalid: [%g, %g]", c.Thresholds.TempMin, c.Thresholds.TempMax)
	}
	if c.Thresholds.HumidityMin >= c.Thresholds.HumidityMax {
		return fmt.Errorf("humidity bounds invalid: [%g, %g]", c.Thresholds.HumidityMin, c.Thresholds.HumidityMax)
	}
	if _, err := time.Parse("15:04", c.ReportTime); err != nil {
		return fmt.Errorf("report time %q not HH:MM", c.ReportTime)
	}
	switch c.Mode {
	case "sim", "gpio", "mqtt":
	default:
		return fmt.Errorf("mode %q not one of sim, gpio, mqtt", c.Mode)
	}
	return nil
}

// Topic joins the prefix, field id and path segments into an MQTT topic.
func (c *Config) Topic(parts ...string) string {
	segs := append([]string{c.MQTT.TopicPrefix, c.FieldID}, parts...)
	return strings.Join(segs, "/")
}

func (c *Config) SensorTopic(kind string) string { return c.Topic("sensors", kind) }
func (c *Config) SensorWildcard() string         { return c.Topic("sensors", "+") }
func (c *Config) StatusTopic() string            { return c.Topic("status") }
func (c *Config) NotifyTopic() string            { return c.Topic("notify") }
func (c *Config) CommandTopic() string           { return c.Topic("cmd") }
func (c *Config) DetectionTopic() string         { return c.Topic("detections") }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: %s=%q not an int, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: %s=%q not a float, using %g", key, v, def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: %s=%q not a bool, using %v", key, v, def)
		return def
	}
	return b
}

// getEnvDuration accepts Go duration strings and, for compatibility with
// plain-seconds deployments, bare integers.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("config: %s=%q not a duration, using %s", key, v, def)
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
