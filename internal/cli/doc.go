// Package cli provides command-line interface setup and configuration
// for the clara application. It handles flag parsing, configuration
// management using cobra and viper, and converts the resolved settings
// into the Config values the pipeline packages take.
package cli
