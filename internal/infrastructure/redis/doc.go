// Package redis connects the GreenHome proxy to the IoT platform's Redis
// broker.
//
// This package manages:
//   - Dial options built from configuration (database, credentials, TLS, timeouts)
//   - A pubsub.Dialer for the subscriber's dedicated connection
//   - A pooled Publisher for outbound PUBLISH commands
//   - Connection health checks via PING
//
// # Architecture
//
// A connection in subscribe mode accepts nothing but subscription commands,
// so the proxy keeps two kinds of connection:
//
//	pubsub.Subscriber  ← one dedicated connection (Dialer)
//	Publisher          ← redis.Pool, borrowed per PUBLISH
//
// # Usage
//
//	sub, err := pubsub.Dial(ctx, redis.Dialer(cfg.Redis))
//	if err != nil {
//	    return err
//	}
//	defer sub.Close()
//
//	pub, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	defer pub.Close()
//
//	_, err = pub.Publish(ctx, config.ChannelDataReportRet, payload)
package redis
