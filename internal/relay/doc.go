// Package relay connects the MQTT ingest namespace to the influx
// write buffer.
//
// Producers publish JSON rows to <prefix>/<table>; the relay decodes
// each message and hands the rows to the buffering client, which
// classifies and batches them. A periodic flush keeps slow trickles of
// data moving even when no buffer ever reaches the overflow threshold.
package relay
