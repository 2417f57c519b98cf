// Package shell dispatches parsed commands against a hypervisor
// connection.
//
// A Control owns the connection and reopens it when a command needs one
// and it is missing, or after a command fails with a transport error.
// Handlers receive the Control and the parsed command and return an error
// that the dispatcher prints as "error: <message>".
//
// Interactive input goes through an Editor: a terminal line editor with
// command and option completion when stdin is a terminal, a plain line
// reader otherwise.
package shell
