// Package progress provides run events, a non-blocking batching hub and the
// sink interface used to export them. Reporting is advisory: nothing in the
// harvest waits on or reacts to a sink.
package progress
