package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"girt/pkg/transmit"
)

// frameRecord is the JSON form of one duration record.
type frameRecord struct {
	// Pulse is true for signal-present intervals, false for spaces.
	Pulse bool `json:"pulse"`
	// Micros is the interval length in microseconds.
	Micros uint32 `json:"micros"`
}

// frameResponse is the JSON form of a completed receive frame.
type frameResponse struct {
	TimeStamp time.Time     `json:"timestamp"`
	Records   []frameRecord `json:"records"`
}

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandleData serves the last completed receive frame. With ?format=raw
// the records are returned in their 4 byte wire form instead of JSON.
func (app *App) HandleData() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request data")

		app.frame.RLock()
		records := app.frame.records
		at := app.frame.at
		app.frame.RUnlock()

		if ctx.Query("format") == "raw" {
			b := make([]byte, 0, len(records)*4)
			for _, r := range records {
				b = r.AppendWire(b)
			}
			ctx.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
			return ctx.Send(b)
		}

		resp := frameResponse{TimeStamp: at, Records: make([]frameRecord, 0, len(records))}
		for _, r := range records {
			resp.Records = append(resp.Records, frameRecord{Pulse: r.IsPulse(), Micros: r.Value()})
		}
		return ctx.JSON(resp)
	}
}

// HandleSend transmits a duration sequence: a JSON array of microsecond
// values, even count, pulse first.
func (app *App) HandleSend() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request send")

		var durations []uint32
		if err := ctx.BodyParser(&durations); err != nil {
			ctx.Status(http.StatusBadRequest)
			return ctx.JSON(fiber.Map{"error": err.Error()})
		}

		if err := app.Send(durations); err != nil {
			ctx.Status(http.StatusUnprocessableEntity)
			return ctx.JSON(fiber.Map{"error": err.Error()})
		}

		return ctx.JSON(fiber.Map{"sent": len(durations)})
	}
}

// HandleGetCarrier returns the current carrier configuration.
func (app *App) HandleGetCarrier() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		duty, freq := app.Carrier()
		return ctx.JSON(fiber.Map{
			"frequency": freq,
			"dutycycle": duty,
		})
	}
}

// HandleSetCarrier updates carrier frequency (0-500000 Hz, 0 disables)
// and duty cycle (1-100). Invalid parameters leave the prior
// configuration untouched.
func (app *App) HandleSetCarrier() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		var req struct {
			Frequency uint32 `json:"frequency"`
			DutyCycle uint32 `json:"dutycycle"`
		}
		if err := ctx.BodyParser(&req); err != nil {
			ctx.Status(http.StatusBadRequest)
			return ctx.JSON(fiber.Map{"error": err.Error()})
		}

		if err := app.SetCarrier(req.DutyCycle, req.Frequency); err != nil {
			ctx.Status(http.StatusUnprocessableEntity)
			return ctx.JSON(fiber.Map{"error": err.Error()})
		}

		debug.InfoLog.Printf("carrier set to %d Hz, duty cycle %d%%", req.Frequency, req.DutyCycle)
		return ctx.JSON(fiber.Map{"frequency": req.Frequency, "dutycycle": req.DutyCycle})
	}
}

// HandleSetTxMask selects the enabled transmitters. An invalid mask is
// rejected and the configured transmitter count returned as a hint.
func (app *App) HandleSetTxMask() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		var req struct {
			Mask uint32 `json:"mask"`
		}
		if err := ctx.BodyParser(&req); err != nil {
			ctx.Status(http.StatusBadRequest)
			return ctx.JSON(fiber.Map{"error": err.Error()})
		}

		if err := app.SetTransmitterMask(req.Mask); err != nil {
			var maskErr *transmit.TxMaskError
			ctx.Status(http.StatusUnprocessableEntity)
			if errors.As(err, &maskErr) {
				return ctx.JSON(fiber.Map{"error": err.Error(), "transmitters": maskErr.Transmitters})
			}
			return ctx.JSON(fiber.Map{"error": err.Error()})
		}

		return ctx.JSON(fiber.Map{"mask": req.Mask})
	}
}

// HandleGetLength would return the device's native sample length; raw
// pulse mode has none, so the request is a stable not-implemented.
func (app *App) HandleGetLength() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		ctx.Status(http.StatusNotImplemented)
		return ctx.JSON(fiber.Map{"error": ErrUnsupported.Error()})
	}
}

// HandleSetMode sets the receive/send mode. Only "pulse" is supported.
func (app *App) HandleSetMode() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		var req struct {
			Mode string `json:"mode"`
		}
		if err := ctx.BodyParser(&req); err != nil {
			ctx.Status(http.StatusBadRequest)
			return ctx.JSON(fiber.Map{"error": err.Error()})
		}

		if err := app.SetMode(req.Mode); err != nil {
			ctx.Status(http.StatusNotImplemented)
			return ctx.JSON(fiber.Map{"error": err.Error()})
		}

		return ctx.JSON(fiber.Map{"mode": req.Mode})
	}
}
