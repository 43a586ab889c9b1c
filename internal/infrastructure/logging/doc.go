// Package logging provides structured logging for Flowline Core.
//
// It wraps the standard library's log/slog with configuration-driven
// setup (level, format, destination) and default fields identifying the
// service and version on every record.
//
// # Usage
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("connected", "database", cfg.Influx.Database)
//
//	influxLog := log.With("component", "influx")
//
// Components receive their logger explicitly; there is no package-level
// global.
package logging
