// Package common provides the configuration and logging shared by the
// command-line tools and the replication backends.
//
// Key Components:
//
//   - NodeConfig: The requested primitive contract (requirement, tuning and
//     timeout policy) plus the Dragonboat parameters used when the primitive
//     resolves to the raft protocol. Converts to protocol.Options and to a
//     Dragonboat NodeHostConfig.
//
//   - Logger: A Dragonboat logger.ILogger implementation with a pipe separated
//     format. InitLoggers installs it as Dragonboat's logger factory so that
//     Dragonboat and this module log through the same sink.
package common
