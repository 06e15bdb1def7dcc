// Package logging provides the leveled logger used across paper-reader.
//
// Levels, lowest to highest:
//   - DEBUG: render attempts, cache hits, lock handoffs
//   - INFO: startup report, uploads and deletions
//   - WARN: recoverable problems (render chain exhausted, index entry skipped)
//   - ERROR: storage failures surfaced as 500s
//   - FATAL: startup errors that terminate the process
//
// The level is read once from DEBUG (1/true/yes/on forces debug) or LOG_LEVEL.
// Tests may override it with SetLevel.
package logging
