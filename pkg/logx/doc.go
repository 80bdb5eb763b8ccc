// Package logx is modbot's structured logger.
//
// A Logger filters by minimum level, builds a Record (timestamp, level,
// message, origin file, optional meta and stack) and fans it out to every
// configured Transport concurrently. Log calls never block on delivery:
//   - Console output is colorized and human readable
//   - File output is JSON lines under a per-run directory
//   - Optional Discord channel sink (min-level + rate limiting)
//
// Transport failures are reported once per call on stderr and never reach
// the caller.
package logx
