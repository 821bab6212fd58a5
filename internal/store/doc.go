// Package store provides SQLite-backed run history.
//
// Every batch run is recorded as one row in runs and one row per
// comparison in comparisons, so match ratios can be tracked across runs
// without keeping old results trees around.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Queries order runs by start time and comparisons by their position in
// the configuration, so listings are stable.
package store
