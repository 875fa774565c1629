// Package sinks implements progress consumers for Prometheus and structured
// logging.
package sinks
