// Package journal records the lifecycle of every platform command the proxy
// handles, in the command_journal table.
//
// An entry is created as "received" when a command arrives on the command
// channel, moves to "forwarded" or "failed" once the home bus publish
// completes, and to "acknowledged" when the device answers.
package journal
