package journal

import "time"

// Status is the lifecycle stage of a journalled command.
type Status string

// Command lifecycle stages.
const (
	StatusReceived     Status = "received"
	StatusForwarded    Status = "forwarded"
	StatusFailed       Status = "failed"
	StatusAcknowledged Status = "acknowledged"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusForwarded, StatusFailed, StatusAcknowledged:
		return true
	}
	return false
}

// Entry is one journalled command.
type Entry struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	DeviceID  string `json:"device_id"`
	ServiceID string `json:"service_id,omitempty"`
	Method    string `json:"method,omitempty"`
	// Payload is the raw command record as received.
	Payload string `json:"payload,omitempty"`
	Status  Status `json:"status"`
	// Result is the device's result code, set on acknowledgement.
	Result     *int      `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	DeviceID string // optional
	Status   Status // optional
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult is one page of entries, most recent first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}
