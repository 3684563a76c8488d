package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/mqtt"
	"github.com/nerrad567/greenhome-proxy/internal/journal"
	"github.com/nerrad567/greenhome-proxy/internal/pubsub"
)

// installCallbacks routes sub's events. Handlers run on the consume loop
// goroutine, so they may read sub's registry.
func (b *Bridge) installCallbacks(ctx context.Context, sub *pubsub.Subscriber) {
	cb := sub.Callbacks()

	cb.SetMetaHandler(func(meta pubsub.Meta) {
		reg := sub.Registry()
		channels := reg.Confirmed(pubsub.KindChannel)
		patterns := reg.Confirmed(pubsub.KindPattern)
		b.status.update(func(s *Status) {
			s.Events["meta"]++
			s.Channels = channels
			s.Patterns = patterns
		})
		b.writeDispatch("meta", meta.Name, 0)
		b.logDebug("subscription acknowledged",
			"type", string(meta.Type),
			"name", meta.Name,
			"count", meta.Count,
		)
		b.broadcast(EventMeta, map[string]any{
			"type":  string(meta.Type),
			"name":  meta.Name,
			"count": meta.Count,
		})
	})

	cb.SetMessageHandler(func(channel string, payload []byte) {
		b.status.update(func(s *Status) { s.Events["message"]++ })
		b.writeDispatch("message", channel, len(payload))
		b.broadcast(EventMessage, map[string]any{
			"channel": channel,
			"size":    len(payload),
		})

		if channel == b.opts.CommandChannel {
			b.handleCommand(ctx, payload)
		}
	})

	cb.SetPatternMessageHandler(func(pattern, channel string, payload []byte) {
		b.status.update(func(s *Status) {
			s.Events["pmessage"]++
			s.PatternMessages[pattern]++
		})
		b.writeDispatch("pmessage", pattern, len(payload))
		b.broadcast(EventPatternMessage, map[string]any{
			"pattern": pattern,
			"channel": channel,
			"size":    len(payload),
		})
	})
}

// handleCommand forwards one platform command to its device.
func (b *Bridge) handleCommand(ctx context.Context, payload []byte) {
	received := time.Now()
	b.status.update(func(s *Status) { s.Commands.Received++ })

	cmd, err := decodeCommand(payload)
	if err != nil {
		b.status.update(func(s *Status) { s.Commands.Invalid++ })
		b.logWarn("rejecting platform command", "error", err)
		b.publishAck(ctx, AckRecord{
			Result:    ResultInvalidCommand,
			DeviceID:  cmd.DeviceID,
			RequestID: cmd.RequestID,
			ServiceID: cmd.ServiceID,
		})
		return
	}

	if seen, _ := b.dedup.ContainsOrAdd(cmd.RequestID, struct{}{}); seen {
		b.status.update(func(s *Status) { s.Commands.Duplicate++ })
		b.logDebug("dropping duplicate command", "request_id", cmd.RequestID, "device_id", cmd.DeviceID)
		return
	}

	entry := &journal.Entry{
		RequestID:  cmd.RequestID,
		DeviceID:   cmd.DeviceID,
		ServiceID:  cmd.ServiceID,
		Method:     cmd.Method,
		Payload:    string(payload),
		Status:     journal.StatusReceived,
		ReceivedAt: received.UTC(),
	}
	b.journalRecord(ctx, entry)

	body, err := json.Marshal(DeviceCommand{
		RequestID: cmd.RequestID,
		ServiceID: cmd.ServiceID,
		Method:    cmd.Method,
		Params:    cmd.Content,
		Timestamp: received.UTC(),
	})
	if err == nil {
		err = b.opts.HomeBus.PublishCommand(cmd.DeviceID, body)
	}

	if err != nil {
		// Let a platform retry of the same request through.
		b.dedup.Remove(cmd.RequestID)

		b.status.update(func(s *Status) { s.Commands.Failed++ })
		b.status.setError(err)
		b.logError("forwarding command failed", fmt.Errorf("device %s request %s: %w", cmd.DeviceID, cmd.RequestID, err))
		b.journalStatus(ctx, entry, journal.StatusFailed, err.Error())
		b.commandOutcome(cmd, journal.StatusFailed, time.Since(received))
		b.publishAck(ctx, AckRecord{
			Result:    ResultForwardFailed,
			DeviceID:  cmd.DeviceID,
			RequestID: cmd.RequestID,
			ServiceID: cmd.ServiceID,
		})
		return
	}

	b.status.update(func(s *Status) { s.Commands.Forwarded++ })
	b.logInfo("command forwarded",
		"device_id", cmd.DeviceID,
		"request_id", cmd.RequestID,
		"method", cmd.Method,
		"platform_result", cmd.Result,
	)
	b.journalStatus(ctx, entry, journal.StatusForwarded, "")
	b.commandOutcome(cmd, journal.StatusForwarded, time.Since(received))
}

// handleDeviceAck relays a device's answer to the platform. It runs on an
// MQTT client goroutine.
func (b *Bridge) handleDeviceAck(topic string, payload []byte) error {
	category, deviceID, ok := mqtt.ParseDeviceTopic(topic)
	if !ok || category != mqtt.CategoryAck {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidAck, topic)
	}
	ack, err := decodeDeviceAck(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	record := AckRecord{
		Result:    ack.Result,
		DeviceID:  deviceID,
		RequestID: ack.RequestID,
		ServiceID: ack.ServiceID,
	}
	cmd := CommandRecord{DeviceID: deviceID, RequestID: ack.RequestID, ServiceID: ack.ServiceID}
	var latency time.Duration

	if b.opts.Journal != nil {
		entry, err := b.opts.Journal.Acknowledge(ctx, ack.RequestID, ack.Result)
		switch {
		case errors.Is(err, journal.ErrNotFound):
			b.logDebug("ack for unjournalled request", "device_id", deviceID, "request_id", ack.RequestID)
		case err != nil:
			b.logError("journal acknowledge failed", err)
		default:
			if record.ServiceID == "" {
				record.ServiceID = entry.ServiceID
			}
			cmd.Method = entry.Method
			latency = time.Since(entry.ReceivedAt)
		}
	}

	b.status.update(func(s *Status) { s.Commands.Acknowledged++ })
	b.commandOutcome(cmd, journal.StatusAcknowledged, latency)
	b.publishAck(ctx, record)
	return nil
}

// handleDeviceReport writes a device report's numeric fields to telemetry
// and relays the report to the platform when a report channel is set.
// It runs on an MQTT client goroutine.
func (b *Bridge) handleDeviceReport(topic string, payload []byte) error {
	category, deviceID, ok := mqtt.ParseDeviceTopic(topic)
	if !ok || category != mqtt.CategoryReport {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidReport, topic)
	}
	fields, err := numericFields(payload)
	if err != nil {
		return err
	}
	if b.opts.Metrics != nil && len(fields) > 0 {
		b.opts.Metrics.WriteDeviceReport(deviceID, fields)
	}

	if b.opts.ReportChannel == "" {
		return nil
	}
	body, err := json.Marshal(ReportRecord{DeviceID: deviceID, Report: payload})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := b.opts.Acks.Publish(ctx, b.opts.ReportChannel, body); err != nil {
		b.status.setError(err)
		return fmt.Errorf("relaying report from %s: %w", deviceID, err)
	}
	return nil
}

// publishAck publishes record on the ack channel. Failures are logged; the
// platform times the command out on its side.
func (b *Bridge) publishAck(ctx context.Context, record AckRecord) {
	body, err := json.Marshal(record)
	if err != nil {
		b.logError("encoding ack failed", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := b.opts.Acks.Publish(ctx, b.opts.AckChannel, body); err != nil {
		b.status.setError(err)
		b.logError("publishing ack failed", fmt.Errorf("request %s: %w", record.RequestID, err))
	}
}

func (b *Bridge) journalRecord(ctx context.Context, entry *journal.Entry) {
	if b.opts.Journal == nil {
		return
	}
	if err := b.opts.Journal.Record(ctx, entry); err != nil {
		b.logError("journal record failed", err)
	}
}

func (b *Bridge) journalStatus(ctx context.Context, entry *journal.Entry, status journal.Status, errMsg string) {
	if b.opts.Journal == nil || entry.ID == "" {
		return
	}
	if err := b.opts.Journal.SetStatus(ctx, entry.ID, status, errMsg); err != nil {
		b.logError("journal status update failed", err)
	}
}

func (b *Bridge) commandOutcome(cmd CommandRecord, status journal.Status, latency time.Duration) {
	if b.opts.Metrics != nil {
		b.opts.Metrics.WriteCommandResult(cmd.DeviceID, cmd.Method, string(status), latency)
	}
	b.broadcast(EventCommand, map[string]any{
		"device_id":  cmd.DeviceID,
		"request_id": cmd.RequestID,
		"method":     cmd.Method,
		"status":     string(status),
	})
}

func (b *Bridge) writeDispatch(eventType, name string, size int) {
	if b.opts.Metrics != nil {
		b.opts.Metrics.WriteDispatch(eventType, name, size)
	}
}
