package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// MaxTransmitters is the highest number of output pins accepted from the
// configuration file.
const MaxTransmitters = 8

// Config holds the application configuration.
// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	// Chip is the GPIO character device to bind ("gpiochip0").
	Chip string `yaml:"chip"`
	// GpioIn is the receiver pin (BCM numbering).
	GpioIn int `yaml:"gpioin"`
	// GpioOut are the transmitter pins, up to MaxTransmitters.
	GpioOut []int `yaml:"gpioout"`
	// Terminator is the input pin bias: pullup, pulldown or none.
	Terminator string `yaml:"terminator"`
	// Sense overrides the receiver polarity autodetection:
	// -1 auto, 0 active high, 1 active low.
	Sense int `yaml:"sense"`
	// SoftCarrier enables the software generated carrier.
	SoftCarrier bool `yaml:"softcarrier"`
	// Invert inverts the transmitter output levels.
	Invert bool `yaml:"invert"`
	// Frequency is the initial carrier frequency in Hz, 0 disables.
	Frequency int `yaml:"frequency"`
	// DutyCycle is the initial carrier duty cycle in percent (1-100).
	DutyCycle int `yaml:"dutycycle"`

	Flag      FlagConfig      `yaml:"-"`
	Debug     DebugConfig     `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Version    bool
	Debug      string
	ConfigFile string
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
	// FrameIdleInt is the idle time in milliseconds that closes a
	// received frame before it is published.
	FrameIdleInt int           `yaml:"frameidle"`
	FrameIdle    time.Duration `yaml:"-"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		Chip:        "gpiochip0",
		GpioIn:      18,
		GpioOut:     []int{17},
		Terminator:  "none",
		Sense:       -1,
		SoftCarrier: true,
		Invert:      false,
		Frequency:   38000,
		DutyCycle:   50,
		Flag:        FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"data":    true,
				"send":    true,
				"config":  true,
			},
		},
		MQTT: MQTTConfig{
			Connection:   "",
			Topic:        "/girt/frames",
			FrameIdleInt: 100,
		},
	}
}

func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.Debug != "" {
		c.Debug.FlagString = c.Flag.Debug
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.MQTT.FrameIdle = time.Duration(c.MQTT.FrameIdleInt) * time.Millisecond

	return c.validate()
}

func (c *Config) validate() error {
	if len(c.GpioOut) == 0 || len(c.GpioOut) > MaxTransmitters {
		return fmt.Errorf("between 1 and %d transmitter pins required, got %d", MaxTransmitters, len(c.GpioOut))
	}
	if c.Sense < -1 || c.Sense > 1 {
		return fmt.Errorf("sense must be -1 (auto), 0 (active high) or 1 (active low), got %d", c.Sense)
	}
	if c.DutyCycle < 1 || c.DutyCycle > 100 {
		return fmt.Errorf("duty cycle must be 1-100, got %d", c.DutyCycle)
	}
	if c.Frequency < 0 || c.Frequency > 500000 {
		return fmt.Errorf("carrier frequency must be 0-500000 Hz, got %d", c.Frequency)
	}
	switch c.Terminator {
	case "pullup", "pulldown", "none":
	default:
		return fmt.Errorf("terminator must be pullup, pulldown or none, got %q", c.Terminator)
	}
	return nil
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
