package app

import (
	"encoding/json"
	"time"

	"github.com/womat/debug"

	"girt/pkg/mqtt"
	"girt/pkg/pulse"
)

// frameService waits for records to arrive in the receive buffer,
// collects them into frames and hands the frames to /data and mqtt.
// A frame is complete once the line stays quiet for the configured idle
// time. This is the single consumer of the ring buffer.
func (app *App) frameService() {
	buf := app.rx.Buffer()

	for range buf.Wait() {
		for {
			n := buf.Len()
			time.Sleep(app.config.MQTT.FrameIdle)
			if buf.Len() == n {
				break
			}
		}

		records := buf.Drain(0)
		if len(records) == 0 {
			continue
		}

		debug.DebugLog.Printf("frame: %d records, %d overruns so far", len(records), buf.Overruns())

		app.frame.Lock()
		app.frame.records = records
		app.frame.at = time.Now()
		app.frame.Unlock()

		app.sendMQTT(app.config.MQTT.Topic, records)
	}
}

// sendMQTT publishes a frame to the mqtt broker.
func (app *App) sendMQTT(topic string, records []pulse.Duration) {
	go func(t string, recs []pulse.Duration) {
		debug.TraceLog.Printf("prepare mqtt message %v (%d records)", t, len(recs))

		msg := frameResponse{TimeStamp: time.Now(), Records: make([]frameRecord, 0, len(recs))}
		for _, r := range recs {
			msg.Records = append(msg.Records, frameRecord{Pulse: r.IsPulse(), Micros: r.Value()})
		}

		b, err := json.MarshalIndent(msg, "", "  ")
		if err != nil {
			debug.ErrorLog.Printf("sendMQTT marshal: %v", err)
			return
		}

		app.mqtt.C <- mqtt.Message{
			Qos:      0,
			Retained: true,
			Topic:    t,
			Payload:  b,
		}
	}(topic, records)
}
