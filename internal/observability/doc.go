// Package observability sets up structured logging and Prometheus metrics
// for the annotation pipeline.
package observability
