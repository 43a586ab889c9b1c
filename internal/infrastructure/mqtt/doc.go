// Package mqtt provides the broker connection for the Flowline ingest
// relay, wrapping paho.mqtt.golang.
//
// The client manages connection lifecycle (connect, auto-reconnect
// with exponential backoff, graceful close), subscription tracking
// with automatic restoration after reconnects, and handler wrapping
// with panic recovery. Topic construction and parsing for the ingest
// namespace lives in Topics.
//
// The package carries no ingest semantics of its own; the relay
// package decides what to do with each message.
package mqtt
