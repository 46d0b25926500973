package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the controller's prometheus collectors.
type Metrics struct {
	CyclesTotal       prometheus.Counter
	CycleErrorsTotal  prometheus.Counter
	ConsecutiveErrors prometheus.Gauge
	RestartsTotal     prometheus.Counter
	CycleDuration     prometheus.Histogram

	IrrigationActivations prometheus.Counter
	IrrigationActive      prometheus.Gauge

	AlertsDispatched *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec
	NotifyFailures   prometheus.Counter

	SensorErrors *prometheus.CounterVec

	Temperature  prometheus.Gauge
	Humidity     prometheus.Gauge
	SoilMoisture prometheus.Gauge
	CPUTemp      prometheus.Gauge
	MemoryPct    prometheus.Gauge
	DiskPct      prometheus.Gauge
}

// New constructs the bundle and registers it on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on reg; tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldd_cycles_total",
			Help: "Total supervisor cycles run",
		}),
		CycleErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldd_cycle_errors_total",
			Help: "Total cycles that ended with an error",
		}),
		ConsecutiveErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldd_consecutive_errors",
			Help: "Consecutive failed cycles",
		}),
		RestartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldd_restarts_total",
			Help: "Restart sequences executed",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldd_cycle_duration_seconds",
			Help:    "Cycle processing time in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		IrrigationActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldd_irrigation_activations_total",
			Help: "Irrigation activations",
		}),
		IrrigationActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldd_irrigation_active",
			Help: "1 while the valve is open",
		}),
		AlertsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldd_alerts_dispatched_total",
			Help: "Alerts sent outward by dispatch group",
		}, []string{"group"}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldd_alerts_suppressed_total",
			Help: "Alert candidates withheld by cooldown, by dispatch group",
		}, []string{"group"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldd_notify_failures_total",
			Help: "Outward notification attempts that failed",
		}),
		SensorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldd_sensor_errors_total",
			Help: "Sensor read failures by sensor",
		}, []string{"sensor"}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldd_temperature_celsius",
			Help: "Last temperature reading",
		}),
		Humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldd_humidity_percent",
			Help: "Last humidity reading",
		}),
		SoilMoisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldd_soil_moisture_percent",
			Help: "Last soil moisture reading",
		}),
		CPUTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldd_cpu_temperature_celsius",
			Help: "Last CPU temperature sample",
		}),
		MemoryPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldd_memory_used_percent",
			Help: "Last memory usage sample",
		}),
		DiskPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldd_disk_used_percent",
			Help: "Last disk usage sample",
		}),
	}
	reg.MustRegister(
		m.CyclesTotal,
		m.CycleErrorsTotal,
		m.ConsecutiveErrors,
		m.RestartsTotal,
		m.CycleDuration,
		m.IrrigationActivations,
		m.IrrigationActive,
		m.AlertsDispatched,
		m.AlertsSuppressed,
		m.NotifyFailures,
		m.SensorErrors,
		m.Temperature,
		m.Humidity,
		m.SoilMoisture,
		m.CPUTemp,
		m.MemoryPct,
		m.DiskPct,
	)
	return m
}
