// Package cli implements the interactive wallet client: a line-oriented REPL
// over the auth, card and wallet state containers.
package cli
