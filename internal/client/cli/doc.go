// Package cli provides the interactive suifan command-line client.
//
// The REPL unlocks (or creates) a local wallet, browses creators and their
// content, subscribes, publishes files and decrypts subscribed content.
// Commands that only read the ledger work without a wallet.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command table.
package cli
