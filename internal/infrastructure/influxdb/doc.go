// Package influxdb provides InfluxDB connectivity for the GreenHome proxy.
//
// It wraps the official influxdb-client-go v2 library and records:
//   - pubsub_dispatch: one point per dispatched event (tags: event, name)
//   - command: command status changes with latency (tags: device_id, method, status)
//   - device_report: numeric fields of device reports (tag: device_id)
//   - pubsub_reconnect: subscriber recoveries (tag: mode)
//
// Every point carries a proxy_id tag. Writes are non-blocking and batched. All Write methods are no-ops on a
// disconnected client, so telemetry never stalls the bridge.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "greenhome",
//	    Bucket:  "proxy",
//	}, "proxy-01")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDispatch("message", "IOTA_TOPIC_SERVICE_COMMAND_RECEIVE", 128)
package influxdb
