package app

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"girt/pkg/app/config"
	"girt/pkg/carrier"
	"girt/pkg/mqtt"
	"girt/pkg/pulse"
	"girt/pkg/raspberry"
	"girt/pkg/receive"
	"girt/pkg/timing"
	"girt/pkg/transmit"
)

// ErrUnsupported rejects requests for modes or features the driver does
// not implement. It is stable and never fatal.
var ErrUnsupported = fmt.Errorf("not implemented")

// App is the main application struct.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// gpio is the handler to the GPIO chip
	gpio raspberry.GPIO

	// clock is the shared monotonic microsecond clock
	clock *timing.SystemClock

	// params is the carrier configuration shared by tx and the
	// configuration endpoints
	params *carrier.Params

	// tx drives the transmitter pins
	tx *transmit.Transmitter

	// rx owns the receive pipeline on the input pin
	rx *receive.Receiver

	outPins []raspberry.Pin
	inPin   raspberry.Pin

	// mu serializes transmit bursts and configuration changes.
	// The receiver is disarmed for the duration of a burst, the
	// userspace stand-in for masking the edge interrupt while the
	// transmitter drives the hardware.
	mu sync.Mutex

	// frame is the last completed receive frame, served by /data
	frame struct {
		sync.RWMutex
		records []pulse.Duration
		at      time.Time
	}

	// restart signals application restart
	restart chan struct{}
	// shutdown signals application shutdown
	shutdown chan struct{}
}

// New checks the Web server URL and initialize the main app structure
func New(cfg *config.Config) (*App, error) {
	u, err := url.Parse(cfg.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", cfg.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    cfg,
		urlParsed: u,

		web:   fiber.New(),
		mqtt:  mqtt.New(),
		clock: timing.NewSystemClock(),

		restart:  make(chan struct{}),
		shutdown: make(chan struct{}),
	}, nil
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()
	go app.frameService()

	return nil
}

// init acquires the GPIO chip and pins, builds the transceiver and arms
// the receiver. Acquisition failures abort activation; there is no retry.
func (app *App) init() (err error) {
	if !raspberry.IsChip(app.config.Chip) {
		return fmt.Errorf("gpio chip %q not found", app.config.Chip)
	}

	if app.gpio, err = raspberry.Open(app.config.Chip); err != nil {
		debug.ErrorLog.Printf("can't open gpio chip %q: %v", app.config.Chip, err)
		return err
	}

	if app.params, err = carrier.New(uint32(app.config.DutyCycle), uint32(app.config.Frequency)); err != nil {
		debug.ErrorLog.Printf("invalid carrier configuration: %v", err)
		return err
	}

	for _, gpio := range app.config.GpioOut {
		var p raspberry.Pin
		if p, err = app.gpio.NewPin(gpio); err != nil {
			debug.ErrorLog.Printf("can't request transmitter pin %d: %v", gpio, err)
			return err
		}
		// outputs start at the idle level
		if err = p.Output(app.config.Invert); err != nil {
			debug.ErrorLog.Printf("can't configure transmitter pin %d: %v", gpio, err)
			return err
		}
		app.outPins = append(app.outPins, p)
	}

	if app.inPin, err = app.gpio.NewPin(app.config.GpioIn); err != nil {
		debug.ErrorLog.Printf("can't request receiver pin %d: %v", app.config.GpioIn, err)
		return err
	}
	if err = app.inPin.Input(app.config.Terminator); err != nil {
		debug.ErrorLog.Printf("can't configure receiver pin %d: %v", app.config.GpioIn, err)
		return err
	}

	if app.tx, err = transmit.New(app.outPins, app.params, app.clock,
		app.config.SoftCarrier, app.config.Invert); err != nil {
		return err
	}

	if app.rx, err = receive.New(app.inPin, app.clock, app.config.Sense); err != nil {
		return err
	}
	if err = app.rx.Arm(); err != nil {
		debug.ErrorLog.Printf("can't arm receiver: %v", err)
		return err
	}

	if err = app.mqtt.Connect(app.config.MQTT.Connection); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initRoutes and initDefaultRoutes should be always called last because it may access things like app.api
	// which must be initialized before in initAPI()
	app.initDefaultRoutes()

	return nil
}

// Send emits the duration sequence on the enabled transmitter pins.
// The burst runs to completion; the receiver is suspended meanwhile so a
// concurrent edge cannot corrupt it (and the burst isn't recorded as
// received signal).
func (app *App) Send(durations []uint32) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.rx.Disarm()
	defer func() {
		if err := app.rx.Resume(); err != nil {
			debug.ErrorLog.Printf("can't resume receiver: %v", err)
		}
	}()

	return app.tx.Send(durations)
}

// SetCarrier updates duty cycle and frequency together.
func (app *App) SetCarrier(dutyCycle, frequency uint32) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.params.Set(dutyCycle, frequency)
}

// Carrier returns the current carrier configuration.
func (app *App) Carrier() (dutyCycle, frequency uint32) {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.params.DutyCycle(), app.params.Frequency()
}

// SetTransmitterMask selects the enabled transmitters.
func (app *App) SetTransmitterMask(mask uint32) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.tx.SetMask(mask)
}

// SetMode accepts the receive/send mode. Only raw pulse mode is
// supported; anything else fails with ErrUnsupported.
func (app *App) SetMode(mode string) error {
	if mode != "pulse" {
		return ErrUnsupported
	}
	return nil
}

// Restart returns the read only restart channel.
// Restart is used to be able to react on application restart. (see cmd/main.go)
func (app *App) Restart() <-chan struct{} {
	return app.restart
}

// Shutdown returns the read only shutdown channel.
// Shutdown is used to be able to react on application shutdown. (see cmd/main.go)
func (app *App) Shutdown() <-chan struct{} {
	return app.shutdown
}

func (app *App) Close() error {
	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}

	if app.rx != nil {
		app.rx.Disarm()
	}
	for _, p := range app.outPins {
		_ = p.Close()
	}
	if app.inPin != nil {
		_ = app.inPin.Close()
	}
	if app.gpio != nil {
		_ = app.gpio.Close()
	}
	return nil
}
