// Package logging sets up structured JSON logging for synexpand.
//
// Without --debug the CLI logs warnings to stderr only. With --debug every
// record is also written to ~/.synexpand/logs/synexpand.log, rotated by size,
// and "synexpand logs" reads it back. The MCP server never writes to stdout
// or stderr; see SetupServeMode.
package logging
