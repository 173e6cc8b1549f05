// Package config loads runtime configuration for the WorkWatch CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Environment variables prefixed with WORKWATCH_.
//  4. Command-line flags, which override everything else.
//
// Paths left empty after all sources are derived from DataDir.
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "720h" or
// integer nanoseconds:
//
//	{
//	  "db_driver": "sqlite",
//	  "data_dir": "/var/lib/workwatch",
//	  "worker_id": "w-0042",
//	  "timezone": "Europe/Istanbul",
//	  "trail_retention": "2160h",
//	  "log": {"level": "info", "format": "json", "file": "/var/log/workwatch.log"}
//	}
//
// The key-wrapping secret is read from WORKWATCH_KEY_SECRET only; it is
// never accepted from a file or a flag.
package config
