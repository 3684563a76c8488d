// Package mqtt provides the home bus MQTT client for the GreenHome proxy.
//
// This package manages:
//   - Connection to the home broker with auto-reconnect
//   - Publishing device commands received from the IoT platform
//   - Subscriptions to device acknowledgements and reports, restored on reconnect
//   - Last Will and Testament (LWT) for proxy offline detection
//
// # Architecture
//
// The proxy sits between the platform's Redis channels and the home bus:
//
//	IoT platform ↔ Redis ↔ GreenHome proxy ↔ MQTT broker ↔ Devices
//
// Topics follow greenhome/{category}/{device_id}:
//
//	greenhome/command/{device_id}   proxy → device
//	greenhome/ack/{device_id}       device → proxy
//	greenhome/report/{device_id}    device → proxy
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceAcks(), 1,
//	    func(topic string, payload []byte) error {
//	        _, deviceID, _ := mqtt.ParseDeviceTopic(topic)
//	        log.Printf("ack from %s: %s", deviceID, payload)
//	        return nil
//	    })
//
//	err = client.PublishCommand("thermostat-01", payload)
package mqtt
