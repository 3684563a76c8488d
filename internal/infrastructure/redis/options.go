package redis

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout applies when the configuration leaves it unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultPingTimeout bounds health check round trips.
	defaultPingTimeout = 5 * time.Second

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// address returns the broker address in host:port form.
func address(cfg config.RedisConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// buildDialOptions creates redigo dial options from proxy config.
//
// This configures:
//   - Logical database selection
//   - ACL username and password (if provided)
//   - Connect, read and write timeouts
//   - TLS (if enabled)
//
// A read timeout of zero is left unset so a subscriber connection can block
// until the next push frame.
func buildDialOptions(cfg config.RedisConfig) []redis.DialOption {
	connectTimeout := time.Duration(cfg.Timeouts.Connect) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	opts := []redis.DialOption{
		redis.DialConnectTimeout(connectTimeout),
		redis.DialDatabase(cfg.DB),
	}

	if cfg.Timeouts.Read > 0 {
		opts = append(opts, redis.DialReadTimeout(time.Duration(cfg.Timeouts.Read)*time.Second))
	}
	if cfg.Timeouts.Write > 0 {
		opts = append(opts, redis.DialWriteTimeout(time.Duration(cfg.Timeouts.Write)*time.Second))
	}

	if cfg.Username != "" {
		opts = append(opts, redis.DialUsername(cfg.Username))
	}
	if cfg.Password != "" {
		opts = append(opts, redis.DialPassword(cfg.Password))
	}

	if cfg.TLS.Enabled {
		opts = append(opts,
			redis.DialUseTLS(true),
			redis.DialTLSConfig(buildTLSConfig(cfg)),
			redis.DialTLSSkipVerify(cfg.TLS.SkipVerify),
		)
	}

	return opts
}

// buildTLSConfig returns the client TLS settings for the broker.
func buildTLSConfig(cfg config.RedisConfig) *tls.Config {
	serverName := cfg.TLS.ServerName
	if serverName == "" {
		serverName = cfg.Host
	}
	return &tls.Config{
		MinVersion: tlsMinVersion,
		ServerName: serverName,
	}
}
