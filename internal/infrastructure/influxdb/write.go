package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the proxy.
const (
	measurementDispatch  = "pubsub_dispatch"
	measurementCommand   = "command"
	measurementReport    = "device_report"
	measurementReconnect = "pubsub_reconnect"
)

// WriteDispatch records one event dispatched by the subscriber.
//
// Parameters:
//   - eventType: "meta", "message" or "pmessage"
//   - name: Channel or pattern the event belongs to
//   - payloadBytes: Payload size (0 for Meta events)
func (c *Client) WriteDispatch(eventType, name string, payloadBytes int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(dispatchPoint(eventType, name, payloadBytes, time.Now()))
}

// WriteCommandResult records the outcome of one platform command.
//
// Parameters:
//   - deviceID: Target device
//   - method: Command method name
//   - status: Journal status ("forwarded", "failed", "acknowledged")
//   - latency: Time from receipt to this status
func (c *Client) WriteCommandResult(deviceID, method, status string, latency time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(commandPoint(deviceID, method, status, latency, time.Now()))
}

// WriteDeviceReport records the numeric fields of a device report. Reports
// without numeric fields are dropped.
//
// Example:
//
//	client.WriteDeviceReport("thermostat-01", map[string]float64{"temperature_c": 21.5})
func (c *Client) WriteDeviceReport(deviceID string, fields map[string]float64) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(reportPoint(deviceID, fields, time.Now()))
}

// WriteReconnect records one subscriber recovery.
//
// Parameters:
//   - mode: "reconnect" after a connection error, "rebuild" after a protocol error
//   - attempts: Dial attempts it took
func (c *Client) WriteReconnect(mode string, attempts int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		measurementReconnect,
		map[string]string{"mode": mode},
		map[string]interface{}{"attempts": attempts},
		time.Now(),
	))
}

func dispatchPoint(eventType, name string, payloadBytes int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementDispatch,
		map[string]string{
			"event": eventType,
			"name":  name,
		},
		map[string]interface{}{
			"count": 1,
			"bytes": payloadBytes,
		},
		ts,
	)
}

func commandPoint(deviceID, method, status string, latency time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementCommand,
		map[string]string{
			"device_id": deviceID,
			"method":    method,
			"status":    status,
		},
		map[string]interface{}{
			"latency_ms": float64(latency) / float64(time.Millisecond),
		},
		ts,
	)
}

func reportPoint(deviceID string, fields map[string]float64, ts time.Time) *write.Point {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return write.NewPoint(
		measurementReport,
		map[string]string{"device_id": deviceID},
		values,
		ts,
	)
}
