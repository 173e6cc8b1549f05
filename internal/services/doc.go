// Package services wires sensors, the chain appender and the trail store
// into the attendance operations exposed by the CLI.
package services
