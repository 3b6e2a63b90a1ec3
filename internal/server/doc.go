// Package server exposes a pipeline run directory over HTTP: the compiled
// HTML pages, the progress log, persisted stage documents and Prometheus
// metrics.
package server
