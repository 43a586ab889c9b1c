// Package config provides YAML-based configuration for Flowline Core.
//
// Configuration is loaded from a single YAML file with three layers of
// precedence: hardcoded defaults, file values, then FLOWLINE_* environment
// variable overrides (used for secrets like the InfluxDB password, so they
// stay out of the file).
//
// Besides process settings (server address, timeouts, batch size, relay
// and logging options), the file declares the target database catalog —
// retention policies, tables with their tag/field classification rules,
// and continuous queries. The schema package turns that declaration into
// the catalog the influx client reconciles on connect.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
