// Package processor connects the command line to the pipeline. It builds
// the model client, coordinator and audio engine from configuration, runs
// single inputs and batch files, and implements the inspection commands
// (status, cache, concordance, archive).
package processor
