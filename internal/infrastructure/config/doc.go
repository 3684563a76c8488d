// Package config handles loading and validating GreenHome proxy configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GREENHOME_* environment variables
//   - Validation of required fields, reporting every problem at once
//   - Default value handling
//
// Security Considerations:
//   - Redis, MQTT and InfluxDB credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret must be set before the admin API is enabled
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.CommandChannel)
package config
