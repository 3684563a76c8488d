// Package bridge connects the IoT platform's Redis channels to the home
// MQTT bus.
//
// A Bridge owns one pubsub.Subscriber. It subscribes the platform command
// channel and the configured monitor patterns, then runs the consume loop:
//
//	platform --PUBLISH--> command channel --> Bridge --> greenhome/command/{device}
//	platform <--PUBLISH-- ack channel     <-- Bridge <-- greenhome/ack/{device}
//
// Commands are decoded, deduplicated by request ID, journalled and
// forwarded. Device acknowledgements update the journal and are published
// back to the platform. Device reports feed telemetry.
//
// Recovery follows the subscriber's error taxonomy: a connection error is
// retried with exponential backoff through Subscriber.Reconnect, which
// replays the requested subscriptions; a protocol error discards the
// subscriber and builds a new one from configuration.
package bridge
