// Package sinks provides progress.Sink implementations: a durable store sink
// that merges percent advances into user documents, a structured log sink,
// and a Prometheus sink for dashboards.
package sinks
