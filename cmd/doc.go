// Package cmd implements the command-line interface of dCTL. It provides a
// hierarchical command structure for running a node and sending controls to it.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring a dCTL node
//   - ctl: Commands sending one control each (status, dbmap, pulldb, tunables, ban, ...)
//     and a benchmark for the control path
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable DCTL_<FLAG>, with dashes replaced by
// underscores. Variables are also read from .env and .env.local.
//
// See dctl -help for a list of all commands.
package cmd
