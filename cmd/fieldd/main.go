package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"field-controller/internal/admin"
	"field-controller/internal/config"
	"field-controller/internal/detect"
	"field-controller/internal/dispatch"
	"field-controller/internal/display"
	"field-controller/internal/evaluate"
	"field-controller/internal/hardware"
	"field-controller/internal/health"
	"field-controller/internal/irrigation"
	"field-controller/internal/metrics"
	"field-controller/internal/model"
	"field-controller/internal/notify"
	"field-controller/internal/report"
	"field-controller/internal/sensor"
	"field-controller/internal/sim"
	"field-controller/internal/store"
	"field-controller/internal/supervisor"
	"field-controller/pkg/mqttx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("fieldd: config: %v", err)
	}
	log.Printf("fieldd: starting for %s (%s), mode %s", cfg.FieldName, cfg.FieldID, cfg.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The broker connection outlives the loop context so the final status
	// and shutdown notification still go out after a signal.
	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()

	met := metrics.New()

	// === MQTT ===
	client, err := mqttx.Connect(connCtx, mqttx.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	})
	if err != nil {
		if cfg.Mode != "sim" {
			log.Fatalf("fieldd: %v", err)
		}
		log.Printf("fieldd: %v, continuing without a broker", err)
		client = nil
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	var statusPub mqttx.IPublisher
	if client != nil {
		pub := mqttx.NewPublisher(client, 1, 5*time.Second)
		notifier = notify.NewMQTTNotifier(pub, cfg.NotifyTopic(), nil)
		statusPub = retainedPublisher{pub}
	}

	// === Sensors and valve ===
	var (
		sources   []sensor.Source
		sink      irrigation.ActuatorSink = irrigation.LogSink{}
		disp      display.Display         = display.LogDisplay{}
		resetters []supervisor.Resetter
	)
	switch cfg.Mode {
	case "gpio":
		rig, err := hardware.NewRig(cfg.Pins)
		if err != nil {
			log.Fatalf("fieldd: hardware: %v", err)
		}
		defer rig.Close()
		sources = rig.Sources()
		sink = rig.Valve()
		resetters = append(resetters, rig)
		if cfg.Display == "lcd" {
			lcd, err := display.NewLCD(rig.Adaptor())
			if err != nil {
				log.Printf("fieldd: lcd: %v, using log display", err)
			} else {
				disp = lcd
				defer lcd.Close()
			}
		}
	case "mqtt":
		feeds := []*sensor.MQTTSource{
			sensor.NewMQTTSource("remote-temperature", model.KindTemperature, cfg.StaleAfter, nil),
			sensor.NewMQTTSource("remote-humidity", model.KindHumidity, cfg.StaleAfter, nil),
			sensor.NewMQTTSource("remote-soil", model.KindSoil, cfg.StaleAfter, nil),
			sensor.NewMQTTSource("remote-light", model.KindLight, cfg.StaleAfter, nil),
			sensor.NewMQTTSource("remote-rain", model.KindRain, cfg.StaleAfter, nil),
			sensor.NewMQTTSource("remote-cpu-temp", model.KindCPUTemp, cfg.StaleAfter, nil),
		}
		for _, f := range feeds {
			sources = append(sources, f)
		}
		fanout := mqttx.JSONHandler("sensor", func(s model.SensorSample) {
			for _, f := range feeds {
				f.Accept(s)
			}
		})
		if err := mqttx.Subscribe(client, cfg.SensorWildcard(), 1, fanout); err != nil {
			log.Fatalf("fieldd: %v", err)
		}
	default: // sim
		sources = sim.DefaultSources(time.Now().UnixNano())
	}

	agg := sensor.NewAggregator(sources, cfg.SensorTimeout, nil)

	// === Storage ===
	files, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("fieldd: data dir: %v", err)
	}
	recorders := store.MultiRecorder{files}
	if cfg.Influx.URL != "" {
		influx, err := store.NewInfluxRecorder(ctx, cfg.Influx, cfg.FieldID)
		if err != nil {
			log.Printf("fieldd: influx disabled: %v", err)
		} else {
			defer influx.Close()
			recorders = append(recorders, influx)
		}
	}

	// === Control ===
	evaluator := evaluate.New(cfg.Thresholds, cfg.AlertCooldown, nil)
	controller := irrigation.NewController(sink, irrigation.Options{
		Cooldown: cfg.IrrigationCooldown,
		Default:  cfg.IrrigationDuration,
		Min:      cfg.IrrigationMin,
		Max:      cfg.IrrigationMax,
		Auto:     cfg.AutoIrrigation,
	}, nil)
	dispatcher, err := dispatch.New(notifier, cfg.FieldName,
		dispatch.WithMetrics(met),
		dispatch.WithSensorCooldown(cfg.AlertCooldown),
		dispatch.WithThreatCooldown(cfg.ThreatCooldown),
	)
	if err != nil {
		log.Fatalf("fieldd: %v", err)
	}
	monitor := health.NewMonitor(health.NewHostProbe("/"), cfg.Thresholds, nil)

	// === Reports ===
	var reports supervisor.ReportRunner
	if cfg.ReportEnabled {
		gen, err := report.NewGenerator(files, notifier, cfg.FieldName, cfg.ReportDir)
		if err != nil {
			log.Fatalf("fieldd: report dir: %v", err)
		}
		reports = gen
		sched := report.NewScheduler(gen, files, cfg.ReportTime, cfg.RetentionDays)
		go sched.Start(ctx)
	}

	// === Supervisor ===
	sup, err := supervisor.New(*cfg, supervisor.Deps{
		Poller:     agg,
		Evaluator:  evaluator,
		Irrigation: controller,
		Alerts:     dispatcher,
		Health:     monitor,
		Notifier:   notifier,
		Recorder:   recorders,
		Display:    disp,
		Status:     statusPub,
		Reports:    reports,
		Resetters:  resetters,
		Metrics:    met,
	})
	if err != nil {
		log.Fatalf("fieldd: %v", err)
	}

	// === Inbound MQTT ===
	if client != nil {
		consumer := detect.NewConsumer(cfg.ThreatClasses, cfg.ThreatCooldown, sup.OfferThreats, nil)
		if err := mqttx.Subscribe(client, cfg.DetectionTopic(), 1, consumer.Handler()); err != nil {
			log.Fatalf("fieldd: %v", err)
		}
		if err := mqttx.Subscribe(client, cfg.CommandTopic(), 1, commandHandler(sup)); err != nil {
			log.Fatalf("fieldd: %v", err)
		}
	}

	// === Admin HTTP ===
	adm := admin.New(cfg.AdminAddr, client, sup, dispatcher)
	go func() {
		log.Printf("fieldd: admin surface on %s", cfg.AdminAddr)
		if err := adm.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("fieldd: admin server: %v", err)
		}
	}()

	// === Run ===
	if err := sup.Run(ctx); err != nil {
		log.Printf("fieldd: supervisor: %v", err)
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	if err := adm.Shutdown(shCtx); err != nil {
		log.Printf("fieldd: admin shutdown: %v", err)
	}
	log.Print("fieldd: stopped")
}

// commandHandler maps operator commands onto supervisor calls. Handlers run
// on the MQTT router goroutine; everything here returns quickly.
func commandHandler(sup *supervisor.Supervisor) mqtt.MessageHandler {
	return mqttx.JSONHandler("command", func(cmd model.Command) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		switch cmd.Action {
		case model.ActionIrrigate:
			d := time.Duration(cmd.DurationS) * time.Second
			if err := sup.ManualIrrigate(ctx, d); err != nil {
				log.Printf("fieldd: irrigate command: %v", err)
			}
		case model.ActionStop:
			if _, err := sup.EmergencyStop(ctx); err != nil {
				log.Printf("fieldd: stop command: %v", err)
			}
		case model.ActionAuto:
			if cmd.Enabled == nil {
				log.Print("fieldd: auto command without enabled flag")
				return
			}
			sup.SetAuto(*cmd.Enabled)
		case model.ActionReport:
			if err := sup.ReportNow(ctx); err != nil {
				log.Printf("fieldd: report command: %v", err)
			}
		default:
			log.Printf("fieldd: unknown command %q", cmd.Action)
		}
	})
}

// retainedPublisher routes status publishes through the retained flag so a
// reconnecting dashboard sees the last state immediately.
type retainedPublisher struct {
	pub *mqttx.Publisher
}

func (r retainedPublisher) PublishJSON(topic string, v interface{}) error {
	return r.pub.PublishRetained(topic, v)
}
