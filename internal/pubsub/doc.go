// Package pubsub implements the subscription multiplexer used by the
// GreenHome proxy to follow the IoT platform's Redis channels.
//
// A Subscriber owns exactly one broker connection. It sends
// SUBSCRIBE/PSUBSCRIBE/UNSUBSCRIBE/PUNSUBSCRIBE commands and turns the
// broker's push stream into typed events:
//
//	Meta            subscription state change (with the broker's count)
//	Message         payload published to a subscribed channel
//	PatternMessage  payload published to a channel matched by a pattern
//
// # Concurrency
//
// The model is pull-based and single-threaded. There is no goroutine inside
// the Subscriber: the caller drives it by calling Consume in a loop, and each
// call performs one blocking read and one synchronous dispatch.
// Subscribe/Unsubscribe calls are plain sends and must not run concurrently
// with an in-flight Consume. The only method safe to call from another
// goroutine is Close, which aborts a blocked read.
//
// Independent consumption loops use independent Subscribers, each with its
// own connection.
//
// # Recovery
//
// A *ConnectionError means the connection failed; call Reconnect to dial a
// fresh connection and re-issue every requested subscription. A
// *ProtocolError means the tracked state can no longer be trusted; the
// Subscriber refuses further work until it is rebuilt by Reconnect.
//
// # Usage
//
//	sub, err := pubsub.Dial(ctx, dialer)
//	if err != nil {
//	    return err
//	}
//	defer sub.Close()
//
//	sub.Callbacks().SetMessageHandler(func(channel string, payload []byte) {
//	    log.Printf("%s: %s", channel, payload)
//	})
//	if err := sub.Subscribe("IOTA_TOPIC_SERVICE_COMMAND_RECEIVE"); err != nil {
//	    return err
//	}
//	for {
//	    if _, err := sub.Consume(); err != nil {
//	        return err
//	    }
//	}
package pubsub
