package bridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// Result codes carried in acknowledgement records.
const (
	ResultSuccess        = 0
	ResultFailed         = 1
	ResultInvalidCommand = 2
	ResultForwardFailed  = 3
)

// CommandRecord is a device command published by the platform on the
// command channel.
type CommandRecord struct {
	// Result is the platform's execution result code. It is informational
	// on inbound commands and is logged with the forward.
	Result    uint   `json:"result"`
	DeviceID  string `json:"device_id"`
	RequestID string `json:"request_id"`
	ServiceID string `json:"service_id"`
	Method    string `json:"method"`
	// Content is the method's parameters, forwarded verbatim.
	Content json.RawMessage `json:"cmd_content,omitempty"`
}

// AckRecord is published on the ack channel for every command outcome.
type AckRecord struct {
	Result    int    `json:"result"`
	DeviceID  string `json:"device_id"`
	RequestID string `json:"request_id"`
	ServiceID string `json:"service_id"`
}

// ReportRecord relays a device report to the platform.
type ReportRecord struct {
	DeviceID string          `json:"device_id"`
	Report   json.RawMessage `json:"report"`
}

// DeviceCommand is the payload published to greenhome/command/{device_id}.
type DeviceCommand struct {
	RequestID string          `json:"request_id"`
	ServiceID string          `json:"service_id,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// DeviceAck is published by a device on greenhome/ack/{device_id}.
type DeviceAck struct {
	RequestID string `json:"request_id"`
	ServiceID string `json:"service_id,omitempty"`
	Result    int    `json:"result"`
}

// decodeCommand parses a command record. The partially decoded record is
// returned with the error so a failure can still be acknowledged.
func decodeCommand(payload []byte) (CommandRecord, error) {
	var cmd CommandRecord
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.DeviceID == "" {
		return cmd, fmt.Errorf("%w: missing device_id", ErrInvalidCommand)
	}
	if cmd.RequestID == "" {
		return cmd, fmt.Errorf("%w: missing request_id", ErrInvalidCommand)
	}
	if cmd.Method == "" {
		return cmd, fmt.Errorf("%w: missing method", ErrInvalidCommand)
	}
	return cmd, nil
}

func decodeDeviceAck(payload []byte) (DeviceAck, error) {
	var ack DeviceAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		return ack, fmt.Errorf("%w: %w", ErrInvalidAck, err)
	}
	if ack.RequestID == "" {
		return ack, fmt.Errorf("%w: missing request_id", ErrInvalidAck)
	}
	return ack, nil
}

// numericFields returns the top-level numeric and boolean fields of a JSON
// object report. Booleans become 0 or 1.
func numericFields(payload []byte) (map[string]float64, error) {
	var report map[string]any
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	fields := make(map[string]float64, len(report))
	for k, v := range report {
		switch val := v.(type) {
		case float64:
			fields[k] = val
		case bool:
			if val {
				fields[k] = 1
			} else {
				fields[k] = 0
			}
		}
	}
	return fields, nil
}
