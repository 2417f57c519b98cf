// Package cmdline turns shell input into validated command invocations.
//
// Input arrives from one of two token sources: an argv vector (batch mode,
// one token per element) or a command string that is split on whitespace
// and semicolons with shell-like quoting. The parser matches tokens against
// a Registry of command definitions, filling named options and positional
// slots, and the accessors on Cmd read typed values back out.
//
// Every command's option list is checked once by Registry.Validate; the
// parser assumes a validated registry.
package cmdline
