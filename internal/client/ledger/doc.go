// Package ledger is the client side of the smart-contract ledger: JSON-RPC
// reads, programmable-transaction building with BCS serialization, intent
// signing, submission and finality waits.
package ledger
