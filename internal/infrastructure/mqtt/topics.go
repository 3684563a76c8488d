package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every home bus topic.
//
// Device topics use the flat scheme: greenhome/{category}/{device_id}
const TopicPrefix = "greenhome"

// Topic categories under TopicPrefix.
const (
	CategoryCommand = "command"
	CategoryAck     = "ack"
	CategoryReport  = "report"
	CategoryProxy   = "proxy"
)

// Topics provides builders for home bus MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.DeviceCommand("thermostat-01")
//	// Returns: "greenhome/command/thermostat-01"
type Topics struct{}

// DeviceCommand returns the topic a device listens on for platform commands.
//
// Example: greenhome/command/thermostat-01
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, CategoryCommand, deviceID)
}

// DeviceAck returns the topic a device answers commands on.
//
// Example: greenhome/ack/thermostat-01
func (Topics) DeviceAck(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, CategoryAck, deviceID)
}

// DeviceReport returns the topic a device publishes telemetry on.
//
// Example: greenhome/report/thermostat-01
func (Topics) DeviceReport(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, CategoryReport, deviceID)
}

// ProxyStatus returns the retained online/offline topic of one proxy.
//
// Example: greenhome/proxy/greenhome-001/status
func (Topics) ProxyStatus(clientID string) string {
	return fmt.Sprintf("%s/%s/%s/status", TopicPrefix, CategoryProxy, clientID)
}

// AllDeviceAcks returns a pattern matching every device acknowledgement.
//
// Pattern: greenhome/ack/+
func (Topics) AllDeviceAcks() string {
	return fmt.Sprintf("%s/%s/+", TopicPrefix, CategoryAck)
}

// AllDeviceReports returns a pattern matching every device report.
//
// Pattern: greenhome/report/+
func (Topics) AllDeviceReports() string {
	return fmt.Sprintf("%s/%s/+", TopicPrefix, CategoryReport)
}

// ParseDeviceTopic splits a device topic into its category and device ID.
// It reports false for topics outside the greenhome/{category}/{device_id}
// scheme.
func ParseDeviceTopic(topic string) (category, deviceID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
