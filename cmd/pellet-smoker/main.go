// Command pellet-smoker runs a pellet smoker: it reads the pit probe, drives
// the auger, fan and igniter relays and publishes telemetry to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/pellet-smoker/internal/actuator"
	"github.com/sweeney/pellet-smoker/internal/appliance"
	"github.com/sweeney/pellet-smoker/internal/clock"
	"github.com/sweeney/pellet-smoker/internal/config"
	"github.com/sweeney/pellet-smoker/internal/gpio"
	"github.com/sweeney/pellet-smoker/internal/logic"
	"github.com/sweeney/pellet-smoker/internal/mqtt"
	"github.com/sweeney/pellet-smoker/internal/pid"
	"github.com/sweeney/pellet-smoker/internal/rtd"
	"github.com/sweeney/pellet-smoker/internal/status"
	"github.com/sweeney/pellet-smoker/internal/web"
)

type options struct {
	configPath  string
	broker      string
	httpAddr    string
	setpoint    float64
	target      string
	printTemp   bool
	writeConfig string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "/etc/pellet-smoker.yaml", "YAML configuration file")
	flag.StringVar(&opts.broker, "broker", "", "MQTT broker address (overrides config)")
	flag.StringVar(&opts.httpAddr, "http", "", `HTTP status address (overrides config, "off" disables)`)
	flag.Float64Var(&opts.setpoint, "setpoint", 0, "Hold setpoint in °C (overrides config)")
	flag.StringVar(&opts.target, "target", "", "Program target: smoke, hold or ignite (overrides config)")
	flag.BoolVar(&opts.printTemp, "print-temp", false, "Print one temperature reading and exit")
	flag.StringVar(&opts.writeConfig, "write-config", "", "Write the effective configuration to this file and exit")

	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the file named by opts and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.broker != "" {
		cfg.MQTT.Broker = opts.broker
	}
	switch opts.httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = opts.httpAddr
	}
	if opts.setpoint != 0 {
		cfg.Controller.Setpoint = opts.setpoint
	}
	if opts.target != "" {
		cfg.Program.Target = opts.target
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if opts.writeConfig != "" {
		if err := cfg.Save(opts.writeConfig); err != nil {
			return err
		}
		log.Printf("wrote configuration to %s", opts.writeConfig)
		return nil
	}

	clk := clock.Real{}

	// Initialize the probe
	port, err := rtd.OpenSPI(cfg.RTD.SPIPort, cfg.RTD.SpeedHz)
	if err != nil {
		return fmt.Errorf("init rtd: %w", err)
	}
	defer port.Close()

	conv := rtd.NewConverter(cfg.RTD.R0, cfg.RTD.RRef, cfg.RTD.A, cfg.RTD.B, cfg.RTD.Poly)
	sensor := rtd.NewSensor(port, conv, clk, rtd.Options{
		Wires:          cfg.RTD.Wires,
		Filter50Hz:     cfg.RTD.Filter50Hz,
		BiasSettle:     cfg.RTD.BiasSettle,
		ConversionTime: cfg.RTD.ConversionTime,
	})
	if err := sensor.Configure(); err != nil {
		return fmt.Errorf("configure rtd: %w", err)
	}

	// Print temperature mode
	if opts.printTemp {
		r, err := sensor.Acquire()
		if err != nil {
			return fmt.Errorf("read rtd: %w", err)
		}
		if err := r.Fault(); err != nil {
			return err
		}
		fmt.Printf("%.2f °C (%.2f Ω, code %d)\n", r.TemperatureC, r.Resistance, r.RawCode)
		return nil
	}

	// Initialize relays
	bank, err := gpio.OpenBank(cfg.Relays.Chip, cfg.Relays.ActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer bank.Close()

	augerOut, err := bank.Output(cfg.Relays.Auger)
	if err != nil {
		return fmt.Errorf("auger relay: %w", err)
	}
	fanOut, err := bank.Output(cfg.Relays.Fan)
	if err != nil {
		return fmt.Errorf("fan relay: %w", err)
	}
	igniterOut, err := bank.Output(cfg.Relays.Igniter)
	if err != nil {
		return fmt.Errorf("igniter relay: %w", err)
	}

	poll := cfg.Actuators.PollInterval
	acts := appliance.Actuators{
		Auger:   actuator.New("auger", augerOut, clk, logic.StartAugerOn, logic.StartAugerOff, poll),
		Fan:     actuator.NewLatched("fan", fanOut, clk, cfg.Actuators.FanCycle, poll),
		Igniter: actuator.NewLatched("igniter", igniterOut, clk, cfg.Actuators.IgniterCycle, poll),
	}

	loop, err := pid.New(cfg.PID.PB, cfg.PID.TI, cfg.PID.TD, clk)
	if err != nil {
		return fmt.Errorf("init pid: %w", err)
	}
	ctrl := appliance.New(sensor, loop, acts, clk, appliance.SettingsFrom(cfg))

	program, err := logic.NewProgram(cfg.Program.Target, cfg.Program.StartDuration, cfg.Program.SmokeDuration, cfg.Program.IgniteDuration)
	if err != nil {
		return err
	}

	runID := uuid.New().String()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, runID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(clk, status.Config{
		TickMs:      cfg.Controller.Tick.Milliseconds(),
		CycleMs:     cfg.PID.CycleTime.Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Target:      cfg.Program.Target,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		RunID:       runID,
	})
	tracker.Update(ctrl.Snapshot(), logic.EventCounts{})
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		RunID:      runID,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event run_id=%s", runID)
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: target=%s setpoint=%.1f tick=%v cycle=%v broker=%s heartbeat=%v",
		cfg.Program.Target, cfg.Controller.Setpoint, cfg.Controller.Tick, cfg.PID.CycleTime, cfg.MQTT.Broker, cfg.MQTT.Heartbeat)

	ticker := time.NewTicker(cfg.Controller.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, program, publisher, publisher, tracker, cfg.MQTT.Heartbeat, clk.Now, ticker.C, sigCh)
}

// runLoop starts the program and runs one control tick per tick until a
// signal arrives. The first signal moves the appliance to Shutdown and keeps
// ticking until the fan purge has finished; a second signal cuts the purge
// short. The loop returns once the appliance is Off and SHUTDOWN has been
// published.
func runLoop(ctrl *appliance.Controller, program logic.Program, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	heartbeats := logic.NewHeartbeat(now())

	var counts logic.EventCounts
	ctrl.Subscribe(func(e logic.Event) {
		counts.Add(e)
		log.Printf("event: %s %s -> %s %s", e.Type, e.From, e.To, e.Detail)
		if err := publisher.Publish(e); err != nil {
			log.Printf("publish error: %v", err)
		}
	})

	refresh := func(s appliance.Sample) {
		if tracker == nil {
			return
		}
		tracker.Update(s, counts)
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	finish := func(reason string) error {
		if ctrl.State() == logic.StateShutdown {
			if err := ctrl.Transition(logic.StateOff); err != nil {
				log.Printf("transition error: %v", err)
			}
		}
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     "SHUTDOWN",
			Reason:    reason,
			Retained:  true,
		}
		if tracker != nil {
			refresh(ctrl.Snapshot())
			event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason)
		}
		if err := publisher.PublishSystem(event); err != nil {
			log.Printf("failed to publish shutdown event: %v", err)
		} else {
			log.Printf("published shutdown event")
		}
		return nil
	}

	if err := ctrl.Transition(logic.StateStart); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	refresh(ctrl.Snapshot())

	var reason string
	for {
		select {
		case s := <-sig:
			name := signalName(s)
			if reason != "" {
				log.Printf("received %v during purge, stopping now", s)
				return finish(reason)
			}
			log.Printf("received %v, shutting down", s)
			reason = name
			if ctrl.State().Active() {
				if err := ctrl.Transition(logic.StateShutdown); err != nil {
					log.Printf("transition error: %v", err)
				}
			}
			if !ctrl.Purging() {
				return finish(reason)
			}
			refresh(ctrl.Snapshot())

		case <-tick:
			t := now()
			sample, err := ctrl.Tick()
			if err != nil {
				log.Printf("tick: %v", err)
			}
			if err := publisher.PublishSample(sample); err != nil {
				log.Printf("sample publish error: %v", err)
			}

			if reason != "" {
				refresh(sample)
				if !ctrl.Purging() {
					log.Printf("purge complete")
					return finish(reason)
				}
				continue
			}

			if next, ok := program.Next(sample.State, sample.EnteredAt, t); ok {
				if err := ctrl.Transition(next); err != nil {
					log.Printf("transition error: %v", err)
				}
				sample = ctrl.Snapshot()
			}

			refresh(sample)

			if hb := heartbeats.Check(t, heartbeat); hb != nil {
				log.Printf("heartbeat: uptime=%v state=%s temp=%.1f", hb.Uptime, sample.State, sample.Reading.TemperatureC)
				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
