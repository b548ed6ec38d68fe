// Package cmd implements the command-line interface of dPrim.
//
// The package is organized into several subpackages:
//
//   - selector: Resolves a primitive requirement to a protocol descriptor (dprim select)
//   - bench: Concurrent increments on an atomic long over the selected protocol (dprim bench)
//   - util: Shared utilities for flags and configuration (internal use)
//
// All flags can also be set via environment variables in the format DPRIM_<flag>,
// .env and .env.local files in the working directory are loaded on start.
//
// See dprim -help for a list of all commands.
package cmd
