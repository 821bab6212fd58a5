// Package config loads and validates a fidelity test configuration.
//
// A configuration is an ordered list of scenarios:
//
//	[
//	  {
//	    "slug": "khronos-DamagedHelmet",
//	    "goldens": [
//	      {"name": "filament", "file": "filament-golden.png"}
//	    ],
//	    "dimensions": {"width": 768, "height": 768}
//	  }
//	]
//
// JSON and YAML documents are both accepted. Decoding is strict: unknown
// fields are rejected, and the decoded value is checked against an embedded
// CUE schema before the Go-level checks (unique slugs, unique golden names,
// names that are safe to use as a single path element).
//
// Any violation is reported as a *ConfigError and fails the whole batch
// before a single scenario runs.
package config
