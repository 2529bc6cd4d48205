// Package config loads the smoker daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/pellet-smoker/internal/gpio"
	"github.com/sweeney/pellet-smoker/internal/logic"
)

// Program targets.
const (
	TargetSmoke  = logic.TargetSmoke
	TargetHold   = logic.TargetHold
	TargetIgnite = logic.TargetIgnite
)

// ConfigurationError reports a non-physical or inconsistent parameter.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Config represents the daemon configuration.
type Config struct {
	RTD        RTDConfig        `yaml:"rtd"`
	PID        PIDConfig        `yaml:"pid"`
	Controller ControllerConfig `yaml:"controller"`
	Program    ProgramConfig    `yaml:"program"`
	Actuators  ActuatorConfig   `yaml:"actuators"`
	Relays     RelayConfig      `yaml:"relays"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// RTDConfig contains the sensor transport and calibration.
type RTDConfig struct {
	SPIPort        string        `yaml:"spi_port"`
	SpeedHz        int64         `yaml:"speed_hz"`
	R0             float64       `yaml:"r0"`   // nominal resistance at 0 °C
	RRef           float64       `yaml:"rref"` // reference resistor
	A              float64       `yaml:"a"`
	B              float64       `yaml:"b"`
	Poly           []float64     `yaml:"poly"` // below-zero fit, ascending powers
	Wires          int           `yaml:"wires"`
	Filter50Hz     bool          `yaml:"filter_50hz"`
	BiasSettle     time.Duration `yaml:"bias_settle"`
	ConversionTime time.Duration `yaml:"conversion_time"`
}

// PIDConfig contains the tuning parameters.
type PIDConfig struct {
	PB        float64       `yaml:"pb"` // proportional band, °C
	TI        float64       `yaml:"ti"` // integral time, s
	TD        float64       `yaml:"td"` // derivative time, s
	CycleTime time.Duration `yaml:"cycle_time"`
}

// ControllerConfig contains the appliance control policy.
type ControllerConfig struct {
	Tick              time.Duration `yaml:"tick"`
	Setpoint          float64       `yaml:"setpoint"`
	PMode             int           `yaml:"p_mode"`
	MinDuty           float64       `yaml:"min_duty"`
	MaxDuty           float64       `yaml:"max_duty"`
	IgnitionThreshold float64       `yaml:"ignition_threshold"`
	IgniterGrace      time.Duration `yaml:"igniter_grace"`
	PurgeDuration     time.Duration `yaml:"purge_duration"`
}

// ProgramConfig selects the state sequence run after start-up.
type ProgramConfig struct {
	Target         string        `yaml:"target"`
	StartDuration  time.Duration `yaml:"start_duration"`
	SmokeDuration  time.Duration `yaml:"smoke_duration"`
	IgniteDuration time.Duration `yaml:"ignite_duration"`
}

// ActuatorConfig contains actuator timing.
type ActuatorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	FanCycle     time.Duration `yaml:"fan_cycle"`
	IgniterCycle time.Duration `yaml:"igniter_cycle"`
}

// RelayConfig contains GPIO line assignments (BCM numbering).
type RelayConfig struct {
	Chip      string `yaml:"chip"`
	Auger     int    `yaml:"auger"`
	Fan       int    `yaml:"fan"`
	Igniter   int    `yaml:"igniter"`
	ActiveLow bool   `yaml:"active_low"`
}

// MQTTConfig contains telemetry settings.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig contains the status server address.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration for a PT100 probe on a MAX31865 breakout
// and a three-relay board.
func Default() *Config {
	return &Config{
		RTD: RTDConfig{
			SPIPort:        "/dev/spidev0.0",
			SpeedHz:        500000,
			R0:             100,
			RRef:           430,
			A:              3.9083e-3,
			B:              -5.775e-7,
			Poly:           []float64{-242.02, 2.2228, 2.5859e-3, -4.8260e-6, -2.8183e-8, 1.5243e-10},
			Wires:          3,
			Filter50Hz:     false,
			BiasSettle:     10 * time.Millisecond,
			ConversionTime: ConversionTimeFor(false),
		},
		PID: PIDConfig{
			PB:        60,
			TI:        180,
			TD:        45,
			CycleTime: 20 * time.Second,
		},
		Controller: ControllerConfig{
			Tick:              3 * time.Second,
			Setpoint:          107,
			PMode:             2,
			MinDuty:           0.15,
			MaxDuty:           1.0,
			IgnitionThreshold: 60,
			IgniterGrace:      2 * time.Minute,
			PurgeDuration:     10 * time.Minute,
		},
		Program: ProgramConfig{
			Target:         TargetHold,
			StartDuration:  4 * time.Minute,
			SmokeDuration:  10 * time.Minute,
			IgniteDuration: 5 * time.Minute,
		},
		Actuators: ActuatorConfig{
			PollInterval: 500 * time.Millisecond,
			FanCycle:     30 * time.Second,
			IgniterCycle: 5 * time.Minute,
		},
		Relays: RelayConfig{
			Chip:      "gpiochip0",
			Auger:     gpio.DefaultPinAuger,
			Fan:       gpio.DefaultPinFan,
			Igniter:   gpio.DefaultPinIgniter,
			ActiveLow: true,
		},
		MQTT: MQTTConfig{
			Broker:    "tcp://192.168.1.200:1883",
			ClientID:  "pellet-smoker",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist the
// defaults are returned. The file is decoded over Default(), so omitted keys
// keep their default and explicit zeros are kept as written. An omitted
// conversion_time follows the filter selection.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg.RTD.ConversionTime = 0
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if cfg.RTD.ConversionTime == 0 {
		cfg.RTD.ConversionTime = ConversionTimeFor(cfg.RTD.Filter50Hz)
	}

	return cfg, nil
}

// ConversionTimeFor returns the one-shot conversion budget for the notch
// filter selection.
func ConversionTimeFor(filter50Hz bool) time.Duration {
	if filter50Hz {
		return 75 * time.Millisecond
	}
	return 65 * time.Millisecond
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate rejects non-physical parameters.
func (c *Config) Validate() error {
	if err := ValidateTuning(c.PID.PB, c.PID.TI, c.PID.TD); err != nil {
		return err
	}
	checks := []struct {
		bad    bool
		field  string
		value  any
		reason string
	}{
		{c.PID.CycleTime <= 0, "pid.cycle_time", c.PID.CycleTime, "must be positive"},
		{c.RTD.R0 <= 0, "rtd.r0", c.RTD.R0, "must be positive"},
		{c.RTD.RRef <= 0, "rtd.rref", c.RTD.RRef, "must be positive"},
		{c.RTD.B == 0, "rtd.b", c.RTD.B, "must be non-zero"},
		{len(c.RTD.Poly) != 6, "rtd.poly", len(c.RTD.Poly), "needs 6 coefficients"},
		{c.RTD.Wires < 2 || c.RTD.Wires > 4, "rtd.wires", c.RTD.Wires, "must be 2, 3 or 4"},
		{c.RTD.BiasSettle < 10*time.Millisecond, "rtd.bias_settle", c.RTD.BiasSettle, "must be at least 10ms"},
		{c.RTD.ConversionTime <= 0, "rtd.conversion_time", c.RTD.ConversionTime, "must be positive"},
		{c.Controller.Tick <= 0, "controller.tick", c.Controller.Tick, "must be positive"},
		{c.Controller.PMode < 0 || c.Controller.PMode > 9, "controller.p_mode", c.Controller.PMode, "must be 0..9"},
		{c.Controller.MinDuty < 0 || c.Controller.MinDuty > 1, "controller.min_duty", c.Controller.MinDuty, "must be within [0,1]"},
		{c.Controller.MaxDuty < 0 || c.Controller.MaxDuty > 1, "controller.max_duty", c.Controller.MaxDuty, "must be within [0,1]"},
		{c.Controller.MinDuty > c.Controller.MaxDuty, "controller.min_duty", c.Controller.MinDuty, "exceeds max_duty"},
		{c.Actuators.PollInterval <= 0, "actuators.poll_interval", c.Actuators.PollInterval, "must be positive"},
		{c.Actuators.FanCycle <= 0, "actuators.fan_cycle", c.Actuators.FanCycle, "must be positive"},
		{c.Actuators.IgniterCycle <= 0, "actuators.igniter_cycle", c.Actuators.IgniterCycle, "must be positive"},
	}
	for _, chk := range checks {
		if chk.bad {
			return &ConfigurationError{Field: chk.field, Value: chk.value, Reason: chk.reason}
		}
	}

	if _, err := logic.NewProgram(c.Program.Target, c.Program.StartDuration, c.Program.SmokeDuration, c.Program.IgniteDuration); err != nil {
		return &ConfigurationError{Field: "program.target", Value: c.Program.Target, Reason: "must be smoke, hold or ignite"}
	}

	r := c.Relays
	if r.Auger == r.Fan || r.Auger == r.Igniter || r.Fan == r.Igniter {
		return &ConfigurationError{Field: "relays", Value: fmt.Sprintf("%d/%d/%d", r.Auger, r.Fan, r.Igniter), Reason: "pins must be distinct"}
	}
	return nil
}

// ValidateTuning checks the PID tuning parameters.
func ValidateTuning(pb, ti, td float64) error {
	if pb <= 0 {
		return &ConfigurationError{Field: "pid.pb", Value: pb, Reason: "proportional band must be positive"}
	}
	if ti <= 0 {
		return &ConfigurationError{Field: "pid.ti", Value: ti, Reason: "integral time must be positive"}
	}
	if td < 0 {
		return &ConfigurationError{Field: "pid.td", Value: td, Reason: "derivative time must not be negative"}
	}
	return nil
}
